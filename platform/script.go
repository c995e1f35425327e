package platform

import (
	"errors"
	"sync"

	"solarcharger-go/services/charger"
)

// Channel names used by Frame.Fault.
const (
	ChanPanelVoltage = "panel_voltage"
	ChanPanelCurrent = "panel_current"
	ChanBattery      = "battery"
)

// ErrScriptedFault is returned by a channel a Frame marks as faulted.
var ErrScriptedFault = errors.New("platform: scripted read fault")

// Frame is the raw input for one control cycle. Every read of a channel
// during the cycle returns its value, except that the first Spikes reads of
// each channel return Spike instead (to exercise outlier rejection).
type Frame struct {
	PanelVoltage uint16 `json:"pv"`
	PanelCurrent uint16 `json:"pi"`
	Battery      uint16 `json:"bv"`
	Spike        uint16 `json:"spike,omitempty"`
	Spikes       int    `json:"spikes,omitempty"`
	Fault        string `json:"fault,omitempty"` // channel name that fails this cycle
}

// Script replays frames. Advance moves to the next frame; the last frame
// repeats once the script is exhausted.
type Script struct {
	mu     sync.Mutex
	frames []Frame
	i      int
	reads  [3]int
}

func NewScript(frames ...Frame) *Script {
	if len(frames) == 0 {
		frames = []Frame{{}}
	}
	return &Script{frames: frames}
}

// Advance moves to the next frame and reports whether one remained.
func (s *Script) Advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = [3]int{}
	if s.i+1 < len(s.frames) {
		s.i++
		return true
	}
	return false
}

// Index is the current frame number.
func (s *Script) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.i
}

// Len is the number of frames.
func (s *Script) Len() int { return len(s.frames) }

// Channels returns samplers bound to this script.
func (s *Script) Channels() charger.Channels {
	return charger.Channels{
		PanelVoltage: scriptChannel{s, 0, ChanPanelVoltage},
		PanelCurrent: scriptChannel{s, 1, ChanPanelCurrent},
		Battery:      scriptChannel{s, 2, ChanBattery},
	}
}

func (s *Script) read(idx int, name string) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.frames[s.i]
	if f.Fault == name {
		return 0, ErrScriptedFault
	}
	s.reads[idx]++
	if s.reads[idx] <= f.Spikes {
		return f.Spike, nil
	}
	switch idx {
	case 0:
		return f.PanelVoltage, nil
	case 1:
		return f.PanelCurrent, nil
	default:
		return f.Battery, nil
	}
}

type scriptChannel struct {
	s    *Script
	idx  int
	name string
}

func (c scriptChannel) ReadU16() (uint16, error) { return c.s.read(c.idx, c.name) }

// RecordingPWM keeps every duty written and the programmed frequency.
type RecordingPWM struct {
	mu     sync.Mutex
	freqHz uint64
	duties []uint16
}

func (p *RecordingPWM) SetDuty(d uint16) error {
	p.mu.Lock()
	p.duties = append(p.duties, d)
	p.mu.Unlock()
	return nil
}

func (p *RecordingPWM) SetFrequency(hz uint64) error {
	p.mu.Lock()
	p.freqHz = hz
	p.mu.Unlock()
	return nil
}

// Duties returns a copy of the write history.
func (p *RecordingPWM) Duties() []uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint16(nil), p.duties...)
}

// Last is the most recent duty, 0 before any write.
func (p *RecordingPWM) Last() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.duties) == 0 {
		return 0
	}
	return p.duties[len(p.duties)-1]
}

func (p *RecordingPWM) Frequency() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freqHz
}
