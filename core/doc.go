// Package core contains the shared types and contracts of CareMesh: the
// collaborator execution contract, session model and store interface, the
// inter-agent message format, the memory bank contract and the optional
// metrics recorder. Higher-level packages (orchestrator, session, memory,
// a2a, server) depend only on the abstractions defined here.
package core
