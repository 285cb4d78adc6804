package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trapos/kernel"
)

const instrumentation = "trapos/kernel"

// Attribute keys.
const (
	AttrSession = attribute.Key("trapos.session")
	AttrProcs   = attribute.Key("trapos.procs")
	AttrPrev    = attribute.Key("trapos.prev")
	AttrNext    = attribute.Key("trapos.next")
	AttrPID     = attribute.Key("trapos.pid")
	AttrSvc     = attribute.Key("trapos.svc")
	AttrIRQ     = attribute.Key("trapos.irq")
)

// Kind selects which events become spans.
type Kind uint8

const (
	KindDispatch Kind = 1 << iota
	KindSyscall
	KindInterrupt

	KindAll = KindDispatch | KindSyscall | KindInterrupt
)

// ParseKinds maps names ("dispatch", "svc", "irq", "all") to a Kind.
func ParseKinds(names []string) (Kind, error) {
	var k Kind
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "dispatch":
			k |= KindDispatch
		case "svc", "syscall":
			k |= KindSyscall
		case "irq", "interrupt":
			k |= KindInterrupt
		case "all":
			k |= KindAll
		default:
			return 0, fmt.Errorf("unknown trace kind %q", n)
		}
	}
	return k, nil
}

// OTel records one "boot" span per reset, from reset until halt, and a short
// child span for each selected event.
type OTel struct {
	tracer  trace.Tracer
	session string
	kinds   Kind

	ctx  context.Context
	boot trace.Span
}

// NewOTel returns a tracer emitting spans through tp.
func NewOTel(tp trace.TracerProvider, session string, kinds Kind) *OTel {
	return &OTel{
		tracer:  tp.Tracer(instrumentation),
		session: session,
		kinds:   kinds,
		ctx:     context.Background(),
	}
}

func (o *OTel) Reset(procs int) {
	o.Close()
	o.ctx, o.boot = o.tracer.Start(context.Background(), "boot",
		trace.WithAttributes(AttrSession.String(o.session), AttrProcs.Int(procs)))
}

func (o *OTel) Dispatch(prev, next kernel.PID) {
	if o.kinds&KindDispatch == 0 {
		return
	}
	o.event("dispatch", AttrPrev.Int(int(prev)), AttrNext.Int(int(next)))
}

func (o *OTel) Syscall(pid kernel.PID, id uint32) {
	if o.kinds&KindSyscall == 0 {
		return
	}
	name := kernel.SyscallName(id)
	if name == "" {
		name = fmt.Sprintf("%#x", id)
	}
	o.event("svc "+name, AttrPID.Int(int(pid)), AttrSvc.String(name))
}

func (o *OTel) Interrupt(id uint32) {
	if o.kinds&KindInterrupt == 0 {
		return
	}
	o.event("irq", AttrIRQ.Int(int(id)))
}

func (o *OTel) Halt() {
	if o.boot == nil {
		return
	}
	o.boot.AddEvent("halt")
	o.boot.SetStatus(codes.Ok, "halted")
	o.Close()
}

// Close ends the boot span, if any.
func (o *OTel) Close() {
	if o.boot != nil {
		o.boot.End()
		o.boot = nil
		o.ctx = context.Background()
	}
}

func (o *OTel) event(name string, attrs ...attribute.KeyValue) {
	_, span := o.tracer.Start(o.ctx, name, trace.WithAttributes(append(attrs, AttrSession.String(o.session))...))
	span.End()
}
