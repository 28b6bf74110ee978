package view

import (
	"fmt"

	"github.com/samse/lottiekit/internal/playback"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/vmihailenco/msgpack/v5"
)

// SavedState is what a view persists across host recreation.
//
// At most one of AnimationName and AnimationResID is set.
type SavedState struct {
	AnimationName     string              `msgpack:"animation_name,omitempty"`
	AnimationResID    int                 `msgpack:"animation_res_id,omitempty"`
	Progress          float64             `msgpack:"progress"`
	IsAnimating       bool                `msgpack:"is_animating"`
	ImageAssetsFolder string              `msgpack:"image_assets_folder,omitempty"`
	RepeatMode        playback.RepeatMode `msgpack:"repeat_mode"`
	RepeatCount       int                 `msgpack:"repeat_count"`
}

// wireState has no methods, so msgpack encodes its fields rather than calling
// MarshalBinary again.
type wireState SavedState

// Validate rejects a state naming two sources or holding out-of-range values.
func (s SavedState) Validate() error {
	if s.AnimationName != "" && s.AnimationResID != 0 {
		return fmt.Errorf("%w: saved state names both asset %q and resource %d",
			shared.ErrInvalidArgument, s.AnimationName, s.AnimationResID)
	}
	if s.Progress < 0 || s.Progress > 1 {
		return fmt.Errorf("%w: saved progress %v", shared.ErrInvalidArgument, s.Progress)
	}
	if s.RepeatCount < playback.Infinite {
		return fmt.Errorf("%w: saved repeat count %d", shared.ErrInvalidArgument, s.RepeatCount)
	}
	return nil
}

// MarshalBinary encodes the state as msgpack.
func (s SavedState) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal(wireState(s))
}

// UnmarshalBinary decodes a msgpack state and validates it.
func (s *SavedState) UnmarshalBinary(data []byte) error {
	var decoded wireState
	if err := msgpack.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("%w: saved state: %v", shared.ErrMalformedData, err)
	}
	if err := SavedState(decoded).Validate(); err != nil {
		return err
	}
	*s = SavedState(decoded)
	return nil
}
