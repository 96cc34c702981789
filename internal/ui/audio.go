package ui

import (
	"encoding/binary"
	"time"

	"github.com/FabianRolfMatthiasNoll/ArduboyAVR/internal/emu"
)

// applyPlayerBufferSize sets the audio player's internal buffer.
// ~20ms in low-latency mode (or during fast-forward), the configured size
// otherwise.
func (a *App) applyPlayerBufferSize() {
	if a.audioPlayer == nil {
		return
	}
	bufMs := a.cfg.AudioBufferMs
	if a.cfg.AudioLowLatency || a.fast {
		bufMs = 20
	}
	a.audioPlayer.SetBufferSize(time.Duration(bufMs) * time.Millisecond)
}

// speakerStream implements io.Reader by pulling mono PCM from the session's
// speaker and duplicating it into 16-bit little-endian stereo frames.
type speakerStream struct {
	s          *emu.Session
	muted      *bool
	lowLatency bool
	// stats
	underruns int
}

func (st *speakerStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	// less than one frame, or nothing to play from: silence
	if len(p) < 4 || st.s == nil || (st.muted != nil && *st.muted) {
		clear(p)
		if len(p) >= 4 {
			time.Sleep(5 * time.Millisecond)
		}
		return len(p), nil
	}

	maxReq := len(p) / 4
	capFrames := 2048 // ~42.7ms at 48kHz
	waitDur := 15 * time.Millisecond
	if st.lowLatency {
		capFrames = 1024
		waitDur = 8 * time.Millisecond
	}
	if maxReq > capFrames {
		maxReq = capFrames
	}

	// the board only exists once the session is initialised
	spk := st.s.Speaker()
	deadline := time.Now().Add(waitDur)
	for spk == nil || spk.Buffered() == 0 {
		if time.Now().After(deadline) {
			return st.silence(p, maxReq), nil
		}
		time.Sleep(time.Millisecond)
		spk = st.s.Speaker()
	}

	samples := spk.Pull(maxReq)
	if len(samples) == 0 {
		return st.silence(p, maxReq), nil
	}
	for i, v := range samples {
		binary.LittleEndian.PutUint16(p[i*4:], uint16(v))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(v))
	}
	return len(samples) * 4, nil
}

func (st *speakerStream) silence(p []byte, maxReq int) int {
	frames := 256
	if frames > maxReq {
		frames = maxReq
	}
	clear(p[:frames*4])
	st.underruns++
	return frames * 4
}
