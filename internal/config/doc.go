// Package config defines the format-agnostic build configuration model and
// the Loader interface implemented by each configuration format.
//
// The Model is a plain description of phases and tasks exactly as written by
// the user. Name resolution, validation of references and phase selection
// happen later in the model package; concrete loaders (HCL, YAML) live in
// their own packages.
package config
