// Package domain defines the core domain types for the crossdeploy
// build-and-deploy pipeline.
//
// This package contains the value objects that flow between pipeline stages:
// build targets, build requests, produced artifacts, and deploy outcomes.
//
// # Core Types
//
// TargetSpec describes a logical deployment target: its build triple, the
// toolchain package it needs, and the remote host that receives the binary.
//
// HostProfile describes where and how an artifact is delivered: remote
// address, final path, and a named credential reference.
//
// BuildRequest captures one build invocation (target, release mode, source
// root). Artifact is the build output handed to verification and deployment.
//
// DeployResult is the terminal record of a deployment attempt.
//
// # Triples
//
// Triple is a parsed arch-vendor-os-abi string. Stages compare triples, not
// raw strings, so the verifier can match an artifact's embedded architecture
// against the architecture component alone.
//
// # Design Principles
//
// - Immutable value objects, created once per run and never mutated
// - No database or external dependencies
// - Validation on the types themselves, not in the consumers
package domain
