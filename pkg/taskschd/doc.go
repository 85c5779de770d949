// Package taskschd registers task definitions with the Windows Task Scheduler
// service through its COM object model.
//
// Every call goes through the same chain: enter COM, set process security,
// create the Schedule.Service object, connect, open a folder, then operate on
// it. Each handle is released by a defer placed right after it is acquired,
// so whatever step fails, exactly the handles acquired before it are released,
// last acquired first.
//
// The native layer is abstracted by Runtime so the chain can be exercised with
// a fake; on windows the default Runtime is backed by go-ole, elsewhere it
// fails the first step with E_NOTIMPL.
package taskschd
