// Package script provides the event types that make up a HID macro script
// and the codec used to export and import scripts.
package script

import (
	"fmt"
	"time"
)

// Kind is the discriminator written as event_type in exported scripts.
type Kind string

// Recognized event kinds.
const (
	KindDelay       Kind = "delay"
	KindPrint       Kind = "print"
	KindKey         Kind = "key"
	KindMouseButton Kind = "mouse_button"
	KindMouseMove   Kind = "mouse_move"
	KindMouseWheel  Kind = "mouse_wheel"
	KindATXButton   Kind = "atx_button"
	KindGPIOSwitch  Kind = "gpio_switch"
	KindGPIOPulse   Kind = "gpio_pulse"
)

// Kinds lists every recognized kind in table order.
var Kinds = []Kind{
	KindDelay, KindPrint, KindKey, KindMouseButton, KindMouseMove,
	KindMouseWheel, KindATXButton, KindGPIOSwitch, KindGPIOPulse,
}

// Event is a single recorded or authored step. The set of implementations
// is closed: only the types in this package satisfy it.
type Event interface {
	Kind() Kind
	isEvent()
}

// Point is an x/y pair used by mouse moves and wheel deltas.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Delay pauses playback for Millis milliseconds.
type Delay struct {
	Millis int64 `json:"millis" yaml:"millis"`
}

// Duration returns the delay as a time.Duration.
func (d Delay) Duration() time.Duration {
	return time.Duration(d.Millis) * time.Millisecond
}

// Print types Text on the target through the paste endpoint.
type Print struct {
	Text string `json:"text" yaml:"text"`
}

// Key presses (State true) or releases a key.
type Key struct {
	Key   string `json:"key" yaml:"key"`
	State bool   `json:"state" yaml:"state"`
}

// MouseButton presses or releases a mouse button.
type MouseButton struct {
	Button string `json:"button" yaml:"button"`
	State  bool   `json:"state" yaml:"state"`
}

// MouseMove moves the absolute pointer.
type MouseMove struct {
	To Point `json:"to" yaml:"to"`
}

// MouseWheel scrolls by Delta.
type MouseWheel struct {
	Delta Point `json:"delta" yaml:"delta"`
}

// ATXButton clicks a chassis power/reset button.
type ATXButton struct {
	Button string `json:"button" yaml:"button"`
}

// GPIOSwitch sets a GPIO channel.
type GPIOSwitch struct {
	Channel string `json:"channel" yaml:"channel"`
	State   bool   `json:"state" yaml:"state"`
}

// GPIOPulse pulses a GPIO channel.
type GPIOPulse struct {
	Channel string `json:"channel" yaml:"channel"`
}

func (Delay) Kind() Kind       { return KindDelay }
func (Print) Kind() Kind       { return KindPrint }
func (Key) Kind() Kind         { return KindKey }
func (MouseButton) Kind() Kind { return KindMouseButton }
func (MouseMove) Kind() Kind   { return KindMouseMove }
func (MouseWheel) Kind() Kind  { return KindMouseWheel }
func (ATXButton) Kind() Kind   { return KindATXButton }
func (GPIOSwitch) Kind() Kind  { return KindGPIOSwitch }
func (GPIOPulse) Kind() Kind   { return KindGPIOPulse }

func (Delay) isEvent()       {}
func (Print) isEvent()       {}
func (Key) isEvent()         {}
func (MouseButton) isEvent() {}
func (MouseMove) isEvent()   {}
func (MouseWheel) isEvent()  {}
func (ATXButton) isEvent()   {}
func (GPIOSwitch) isEvent()  {}
func (GPIOPulse) isEvent()   {}

// Delivery describes how playback hands an event to the remote target.
type Delivery int

const (
	// Timed events suspend playback and are never sent anywhere.
	Timed Delivery = iota
	// MustComplete events are requests whose success gates the next step.
	MustComplete
	// FireAndForget events go over the live transport without acknowledgment.
	FireAndForget
)

func (d Delivery) String() string {
	switch d {
	case Timed:
		return "timed"
	case MustComplete:
		return "must-complete"
	case FireAndForget:
		return "fire-and-forget"
	default:
		return fmt.Sprintf("Delivery(%d)", int(d))
	}
}

// DeliveryOf returns the delivery class of ev.
func DeliveryOf(ev Event) (Delivery, error) {
	switch ev.(type) {
	case Delay:
		return Timed, nil
	case Print, ATXButton, GPIOSwitch, GPIOPulse:
		return MustComplete, nil
	case Key, MouseButton, MouseMove, MouseWheel:
		return FireAndForget, nil
	default:
		return 0, fmt.Errorf("unsupported event type %T", ev)
	}
}

// Script is an ordered sequence of events. Order is replay order.
type Script struct {
	Events []Event
}

// New returns an empty script.
func New(events ...Event) *Script {
	s := &Script{Events: make([]Event, 0, len(events))}
	s.Events = append(s.Events, events...)
	return s
}

// Append adds events at the end of the script.
func (s *Script) Append(events ...Event) {
	s.Events = append(s.Events, events...)
}

// Len returns the number of events.
func (s *Script) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Events)
}

// TotalMillis sums the millis of every delay event.
func (s *Script) TotalMillis() int64 {
	if s == nil {
		return 0
	}
	var total int64
	for _, ev := range s.Events {
		if d, ok := ev.(Delay); ok {
			total += d.Millis
		}
	}
	return total
}

// Duration returns TotalMillis as a time.Duration.
func (s *Script) Duration() time.Duration {
	return time.Duration(s.TotalMillis()) * time.Millisecond
}

// Clone returns a copy whose event slice can be modified independently.
func (s *Script) Clone() *Script {
	if s == nil {
		return nil
	}
	return New(s.Events...)
}
