package remote

import (
	"testing"
	"time"

	"astroremote/backend/astro"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeStatusLayout(t *testing.T) {
	start := time.Unix(0x01020304, 0)
	frame := time.Unix(0x0A0B0C0D, 0)
	buf := EncodeStatus(astro.Status{
		State:                 astro.Interval,
		CompletedFrames:       0x0102,
		TotalFrames:           0x01E0,
		SequenceStartTime:     start,
		CurrentFrameStartTime: frame,
		ElapsedSec:            0x11223344,
		RemainingSec:          0x55,
		CameraConnected:       true,
		ErrorCode:             astro.CodeExposureStartFailed,
	})

	require.Len(t, buf, StatusSnapshotSize)
	assert.Equal(t, []byte{
		0x03,
		0x02, 0x01,
		0xE0, 0x01,
		0x04, 0x03, 0x02, 0x01,
		0x0D, 0x0C, 0x0B, 0x0A,
		0x44, 0x33, 0x22, 0x11,
		0x55, 0x00, 0x00, 0x00,
		0x01,
		0x03,
	}, buf)
}

func TestEncodeStatusZeroTimes(t *testing.T) {
	buf := EncodeStatus(astro.Status{})
	assert.Equal(t, make([]byte, StatusSnapshotSize), buf)
}

func TestDecodeParams(t *testing.T) {
	p, err := DecodeParams([]byte{0x05, 0x00, 0x3C, 0x00, 0x0A, 0x00, 0x05, 0x00})
	require.NoError(t, err)
	assert.Equal(t, astro.DefaultParameters(), p)

	_, err = DecodeParams([]byte{0x05, 0x00})
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestCommandWord(t *testing.T) {
	assert.Equal(t, CategoryAstro, AstroSetParams.Category())
	assert.Equal(t, byte(0x04), AstroSetParams.Sub())
	assert.Equal(t, "button-down", ButtonDown.String())
	assert.Equal(t, "0x0399", CommandWord(0x0399).String())
}
