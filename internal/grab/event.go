// Package grab defines the grab/release events relayed to the hardware and
// their newline-delimited wire format.
package grab

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Hand identifies which hand performed an interaction.
type Hand int

const (
	Left Hand = iota
	Right
)

func (h Hand) String() string {
	switch h {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("hand(%d)", int(h))
	}
}

// Action is the edge being reported.
type Action int

const (
	Release Action = iota
	Grab
)

func (a Action) String() string {
	switch a {
	case Release:
		return "release"
	case Grab:
		return "grab"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ActionFor maps a grabbed state to the action that enters it.
func ActionFor(grabbed bool) Action {
	if grabbed {
		return Grab
	}
	return Release
}

// Event is a single grab or release transition.
type Event struct {
	Hand      Hand
	Action    Action
	MassGrams float64
}

// Format renders the event as "<hand>,<action>,<mass>" without the trailing
// newline. Mass always carries two fraction digits.
func (e Event) Format() string {
	return fmt.Sprintf("%d,%d,%.2f", int(e.Hand), int(e.Action), e.MassGrams)
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s %.2fg", e.Hand, e.Action, e.MassGrams)
}

var ErrMalformedEvent = errors.New("malformed grab event")

// ParseEvent decodes a wire line back into an Event. A trailing newline or
// carriage return is tolerated.
func ParseEvent(line string) (Event, error) {
	line = strings.TrimRight(line, "\r\n")
	segments := strings.Split(line, ",")
	if len(segments) != 3 {
		return Event{}, fmt.Errorf("%w: %q, expected 3 segments", ErrMalformedEvent, line)
	}

	hand, err := strconv.Atoi(segments[0])
	if err != nil || (hand != int(Left) && hand != int(Right)) {
		return Event{}, fmt.Errorf("%w: invalid hand %q", ErrMalformedEvent, segments[0])
	}

	action, err := strconv.Atoi(segments[1])
	if err != nil || (action != int(Release) && action != int(Grab)) {
		return Event{}, fmt.Errorf("%w: invalid action %q", ErrMalformedEvent, segments[1])
	}

	mass, err := strconv.ParseFloat(segments[2], 64)
	if err != nil {
		return Event{}, fmt.Errorf("%w: failed to parse mass: %v", ErrMalformedEvent, err)
	}
	if mass < 0 {
		return Event{}, fmt.Errorf("%w: negative mass %q", ErrMalformedEvent, segments[2])
	}

	return Event{Hand: Hand(hand), Action: Action(action), MassGrams: mass}, nil
}
