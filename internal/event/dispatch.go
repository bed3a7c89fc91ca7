package event

// Handler handles the leaf events of a stream.
type Handler interface {
	HandleProgress(ev TaskProgress)
	HandleTaskBegin(ev TaskBegin)
	HandleTaskEnd(ev TaskEnd)
	HandleInfo(ev Info)
	HandleLog(ev Log)
}

// Dispatch calls exactly one handler method for the event. Batch updates are
// unwrapped until a leaf event is found.
func Dispatch(env Envelope, h Handler) {
	switch ev := Unwrap(env).(type) {
	case TaskProgress:
		h.HandleProgress(ev)
	case TaskBegin:
		h.HandleTaskBegin(ev)
	case TaskEnd:
		h.HandleTaskEnd(ev)
	case Info:
		h.HandleInfo(ev)
	case Log:
		h.HandleLog(ev)
	}
}

// Unwrap returns the innermost event of nested batch updates.
func Unwrap(env Envelope) Envelope {
	for {
		bu, ok := env.(BatchUpdate)
		if !ok {
			return env
		}
		env = bu.Data
	}
}

// NoopHandler ignores every event, embed it to handle a subset of the events.
type NoopHandler struct{}

func (NoopHandler) HandleProgress(TaskProgress) {}
func (NoopHandler) HandleTaskBegin(TaskBegin)   {}
func (NoopHandler) HandleTaskEnd(TaskEnd)       {}
func (NoopHandler) HandleInfo(Info)             {}
func (NoopHandler) HandleLog(Log)               {}

// Handlers fans out every event to all the handlers in order.
type Handlers []Handler

func (hs Handlers) HandleProgress(ev TaskProgress) {
	for _, h := range hs {
		h.HandleProgress(ev)
	}
}

func (hs Handlers) HandleTaskBegin(ev TaskBegin) {
	for _, h := range hs {
		h.HandleTaskBegin(ev)
	}
}

func (hs Handlers) HandleTaskEnd(ev TaskEnd) {
	for _, h := range hs {
		h.HandleTaskEnd(ev)
	}
}

func (hs Handlers) HandleInfo(ev Info) {
	for _, h := range hs {
		h.HandleInfo(ev)
	}
}

func (hs Handlers) HandleLog(ev Log) {
	for _, h := range hs {
		h.HandleLog(ev)
	}
}
