// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model holds the fully resolved build definition: phases, the tasks
// they own, and the dependency edges between them.
//
// # Core Concepts
//
//   - Phase: a named stage of the build (for example "build" or "test"). A
//     phase owns an ordered list of tasks, depends on other phases, and is
//     consumed by the phases that depend on it.
//
//   - Task: the smallest unit of declared work. A task belongs to exactly one
//     phase, names the plugin that executes it, and may depend on other tasks,
//     including tasks of other phases.
//
//   - Project: the set of all phases declared by the configuration, with every
//     name reference already resolved to a pointer.
//
// The model is produced from a config.Model by Resolve and is the only input
// the operation graph builder needs. It never changes once resolved, so a
// single Project is reused across every watch iteration.
package model
