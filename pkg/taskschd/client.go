package taskschd

import (
	"strings"

	"github.com/google/uuid"

	logx "wintask/pkg/logx"
)

// RootFolder is the scheduler's top-level task folder.
const RootFolder = `\`

// Client drives the native call chain against one folder.
//
// A Client holds no native state between calls; every CreateTask/DeleteTask
// acquires and releases its own handles. Calls must not run concurrently on
// the same Runtime.
type Client struct {
	Runtime Runtime
	// Folder defaults to RootFolder.
	Folder string
	Log    logx.Logger
}

// NewClient returns a Client for the root folder. A nil rt selects the
// platform runtime.
func NewClient(rt Runtime, log logx.Logger) *Client {
	if rt == nil {
		rt = platformRuntime()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{Runtime: rt, Folder: RootFolder, Log: log}
}

// CreateTask registers xml under name in the root folder, replacing any task
// of the same name, using the platform runtime.
func CreateTask(name, xml string) error {
	return NewClient(nil, logx.Nop()).CreateTask(name, xml)
}

// DeleteTask removes name from the root folder using the platform runtime.
func DeleteTask(name string) error {
	return NewClient(nil, logx.Nop()).DeleteTask(name)
}

// CreateTask registers xml under name, replacing any existing task of the
// same name. Deleting the previous task is best effort: its failure is logged
// and otherwise ignored.
func (c *Client) CreateTask(name, xml string) error {
	log := c.logger().With(logx.String("op", "create"), logx.String("task", name), logx.String("call_id", uuid.NewString()))

	return c.withFolder(log, func(folder Folder, svc Service) error {
		if hr := folder.DeleteTask(name); hr.Failed() {
			log.Debug("previous task not deleted", logx.Hex("hr", uint32(hr)))
		}

		def, hr := svc.NewDefinition()
		if err := check(hr, "failed to create a task definition"); err != nil {
			return err
		}
		defer c.release(log, "definition", def)

		if err := check(def.SetXML(xml), "failed to load task XML"); err != nil {
			return err
		}

		reg, hr := folder.Register(name, def)
		if err := check(hr, "error saving the task"); err != nil {
			return err
		}
		defer c.release(log, "registered task", reg)

		log.Info("task registered")
		return nil
	})
}

// DeleteTask removes name from the folder. Unlike CreateTask, a failed
// delete is returned.
func (c *Client) DeleteTask(name string) error {
	log := c.logger().With(logx.String("op", "delete"), logx.String("task", name), logx.String("call_id", uuid.NewString()))

	return c.withFolder(log, func(folder Folder, _ Service) error {
		if err := check(folder.DeleteTask(name), "failed to delete task"); err != nil {
			return err
		}
		log.Info("task deleted")
		return nil
	})
}

// withSession enters COM, secures it, creates and connects the service, runs
// fn, then unwinds in reverse order.
func (c *Client) withSession(log logx.Logger, fn func(Service) error) error {
	rt := c.Runtime
	if rt == nil {
		rt = platformRuntime()
	}

	if err := check(rt.Initialize(), "CoInitializeEx failed"); err != nil {
		return err
	}
	defer func() {
		rt.Uninitialize()
		log.Trace("released com")
	}()

	if err := check(rt.InitializeSecurity(), "CoInitializeSecurity failed"); err != nil {
		return err
	}

	svc, hr := rt.NewService()
	if err := check(hr, "failed to create an instance of ITaskService"); err != nil {
		return err
	}
	defer c.release(log, "service", svc)

	if err := check(svc.Connect(), "ITaskService::Connect failed"); err != nil {
		return err
	}
	log.Debug("connected to task service")

	return fn(svc)
}

func (c *Client) withFolder(log logx.Logger, fn func(Folder, Service) error) error {
	path := c.folderPath()
	return c.withSession(log, func(svc Service) error {
		folder, hr := svc.Folder(path)
		if err := check(hr, "cannot get folder "+path); err != nil {
			return err
		}
		defer c.release(log, "folder", folder)

		return fn(folder, svc)
	})
}

type releaser interface{ Release() }

func (c *Client) release(log logx.Logger, what string, h releaser) {
	h.Release()
	log.Trace("released " + what)
}

func (c *Client) folderPath() string {
	if p := strings.TrimSpace(c.Folder); p != "" {
		return p
	}
	return RootFolder
}

func (c *Client) logger() logx.Logger {
	if c.Log.IsZero() {
		return logx.Nop()
	}
	return c.Log
}
