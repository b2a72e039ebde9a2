package eventbus

import (
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

// EventBus dispatches published events to every subscribed handler whose
// function signature matches the published arguments. Dispatch is synchronous
// and in subscription order.
type EventBus interface {
	Publish(args ...interface{})
	Subscribe(handler interface{})
	Unsubscribe(handler interface{})
	Clear()
	SubscribersCount() int
}

func NewEventPublisher(log *logrus.Logger) EventBus {
	return &publisher{log: log}
}

type publisher struct {
	log *logrus.Logger

	mu       sync.RWMutex
	handlers []interface{}
}

// matches reports whether the handler function accepts exactly the published
// argument list: same arity, with interface parameters satisfied by
// implementation and concrete parameters by assignability.
func matches(handler interface{}, args []interface{}) bool {
	t := reflect.TypeOf(handler)
	if t.Kind() != reflect.Func || t.NumIn() != len(args) {
		return false
	}
	for i, arg := range args {
		param := t.In(i)
		if arg == nil {
			if param.Kind() != reflect.Interface && param.Kind() != reflect.Ptr {
				return false
			}
			continue
		}
		argType := reflect.TypeOf(arg)
		if param.Kind() == reflect.Interface {
			if !argType.Implements(param) {
				return false
			}
			continue
		}
		if !argType.AssignableTo(param) {
			return false
		}
	}
	return true
}

func (p *publisher) Publish(args ...interface{}) {
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		in[i] = reflect.ValueOf(arg)
	}

	p.mu.RLock()
	handlers := make([]interface{}, len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.RUnlock()

	delivered := false
	for _, handler := range handlers {
		if !matches(handler, args) {
			continue
		}
		p.call(handler, in)
		delivered = true
	}

	if !delivered && p.log != nil {
		p.log.Warnf("eventbus: no subscriber for event %v", args)
	}
}

// call invokes one handler, containing its panics so one bad subscriber
// cannot break the publisher or the remaining subscribers.
func (p *publisher) call(handler interface{}, in []reflect.Value) {
	defer func() {
		if r := recover(); r != nil && p.log != nil {
			p.log.Errorf("eventbus: handler %s panicked: %v", reflect.TypeOf(handler), r)
		}
	}()
	reflect.ValueOf(handler).Call(in)
}

func (p *publisher) Subscribe(handler interface{}) {
	if reflect.TypeOf(handler).Kind() != reflect.Func {
		panic("eventbus: handler must be a function")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, handler)
}

func (p *publisher) Unsubscribe(handler interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	target := reflect.ValueOf(handler).Pointer()
	for i, h := range p.handlers {
		if reflect.ValueOf(h).Pointer() == target {
			p.handlers = append(p.handlers[:i], p.handlers[i+1:]...)
			return
		}
	}
}

func (p *publisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = nil
}

func (p *publisher) SubscribersCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handlers)
}
