// Package taskdef models a Windows Task Scheduler task definition and renders
// it to the Task Scheduler XML schema.
//
// A Task is built from schema defaults (New), mutated freely by the caller and
// then serialized with (*Task).XML. Nothing is validated here: conflicting
// policies are emitted as-is and left for the scheduling service to reject.
//
// Element order in the output is fixed by the schema, never by the order in
// which fields were assigned, so two tasks with equal field values always
// render to byte-identical documents.
package taskdef
