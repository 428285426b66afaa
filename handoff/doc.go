// Package handoff transfers in-flight work between agents with full state.
//
// A handoff moves through a small state machine:
//
//	pending -> accepted -> completed
//	pending -> rejected
//
// Only the designated recipient may accept or reject. Completion carries
// no identity check. Every other transition request is refused without
// touching the record.
//
// Initiating a handoff publishes a handoff-typed message on the bus so the
// recipient learns about the transfer the same way it learns about
// everything else:
//
//	mgr := handoff.NewManager(b)
//	mgr.Initiate("task-42", "planner", "builder", stateJSON, ctxJSON)
//
//	// in builder's message handler:
//	ann, _ := handoff.UnmarshalAnnouncement(msg.Payload)
//	record, err := mgr.Accept(ann.TaskID, "builder")
//
// Records persist after reaching a terminal state so status queries keep
// working; a terminal task ID may be reused for a fresh transfer.
package handoff
