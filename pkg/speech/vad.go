package speech

import (
	"math"
	"time"
)

// HopDuration is the analysis step of the level detector.
const HopDuration = 10 * time.Millisecond

// silenceDB is reported for empty input.
const silenceDB = -100.0

// Segmenter cuts utterances out of a mono PCM16 stream. Each hop is
// measured in dBFS and fed through an on/off detector with hysteresis:
// the level must stay above VADOnDB for Attack to open an utterance and
// below VADOffDB for Release to close it.
//
// Segmenter is not safe for concurrent use.
type Segmenter struct {
	cfg  Config
	rate int
	hop  int

	attackHops  int
	releaseHops int
	prerollLen  int
	minVoiced   int
	maxLen      int

	pending []int16
	preroll []int16
	seg     []int16
	voiced  int

	on    bool
	above int
	below int
}

// NewSegmenter returns a segmenter for mono audio at sampleRate.
func NewSegmenter(cfg Config, sampleRate int) *Segmenter {
	hop := max(1, sampleRate*int(HopDuration/time.Millisecond)/1000)
	s := &Segmenter{
		cfg:         cfg,
		rate:        sampleRate,
		hop:         hop,
		attackHops:  max(1, int(cfg.Attack/HopDuration)),
		releaseHops: max(1, int(cfg.Release/HopDuration)),
		minVoiced:   int(cfg.MinSpeech / HopDuration),
		maxLen:      int(cfg.MaxUtterance.Seconds() * float64(sampleRate)),
	}
	// The attack hops themselves must survive in the preroll.
	s.prerollLen = max(int(cfg.Preroll.Seconds()*float64(sampleRate)), s.attackHops*hop)
	return s
}

// SampleRate returns the rate the segmenter was built for.
func (s *Segmenter) SampleRate() int { return s.rate }

// Active reports whether an utterance is currently open.
func (s *Segmenter) Active() bool { return s.on }

// Feed consumes samples and returns any utterances they complete.
func (s *Segmenter) Feed(samples []int16) [][]int16 {
	s.pending = append(s.pending, samples...)

	var out [][]int16
	i := 0
	for ; len(s.pending)-i >= s.hop; i += s.hop {
		if u := s.step(s.pending[i : i+s.hop]); u != nil {
			out = append(out, u)
		}
	}
	n := copy(s.pending, s.pending[i:])
	s.pending = s.pending[:n]
	return out
}

// Reset drops any partial utterance and detector state.
func (s *Segmenter) Reset() {
	s.pending = s.pending[:0]
	s.preroll = s.preroll[:0]
	s.seg = nil
	s.voiced = 0
	s.on = false
	s.above = 0
	s.below = 0
}

func (s *Segmenter) step(hop []int16) []int16 {
	db := DBFS(hop)
	loud := db >= s.cfg.VADOnDB

	wasOn := s.on
	if loud {
		s.above++
		s.below = 0
		if !s.on && s.above >= s.attackHops {
			s.on = true
		}
	} else if db <= s.cfg.VADOffDB {
		s.below++
		s.above = 0
		if s.on && s.below >= s.releaseHops {
			s.on = false
		}
	}

	switch {
	case !wasOn && s.on:
		s.seg = make([]int16, 0, len(s.preroll)+len(hop))
		s.seg = append(s.seg, s.preroll...)
		s.seg = append(s.seg, hop...)
		s.preroll = s.preroll[:0]
		s.voiced = s.above
		return nil

	case wasOn && s.on:
		s.seg = append(s.seg, hop...)
		if loud {
			s.voiced++
		}
		if len(s.seg) >= s.maxLen {
			s.on = false
			s.above = 0
			s.below = 0
			return s.finish()
		}
		return nil

	case wasOn && !s.on:
		s.seg = append(s.seg, hop...)
		return s.finish()
	}

	s.preroll = append(s.preroll, hop...)
	if over := len(s.preroll) - s.prerollLen; over > 0 {
		n := copy(s.preroll, s.preroll[over:])
		s.preroll = s.preroll[:n]
	}
	return nil
}

func (s *Segmenter) finish() []int16 {
	seg, voiced := s.seg, s.voiced
	s.seg = nil
	s.voiced = 0
	if voiced < s.minVoiced {
		return nil
	}
	return seg
}

// DBFS returns the RMS level of samples in dB relative to full scale.
func DBFS(samples []int16) float64 {
	if len(samples) == 0 {
		return silenceDB
	}
	var sum float64
	for _, v := range samples {
		f := float64(v) / 32768.0
		sum += f * f
	}
	rms := math.Sqrt(sum/float64(len(samples)) + 1e-12)
	return max(silenceDB, 20.0*math.Log10(rms+1e-12))
}
