// Package hcl provides the HCL implementation of config.Loader. It parses
// phaserun.hcl files, evaluates task options with go-cty, and translates the
// blocks into the format-agnostic config.Model.
//
// Expressions may reference two variables: `env`, an object of the process
// environment, and `build_folder`, the folder containing the file.
package hcl
