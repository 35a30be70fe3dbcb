package discord

// Activity is the rich presence payload sent with SET_ACTIVITY.
type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Buttons    []Button    `json:"buttons,omitempty"`
}

// Timestamps holds unix seconds.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Assets references artwork by key or URL.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Button is a clickable link shown under the activity.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Equal reports whether two activities would render identically.
func (a *Activity) Equal(b *Activity) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Details != b.Details || a.State != b.State {
		return false
	}
	if !equalPtr(a.Timestamps, b.Timestamps) || !equalPtr(a.Assets, b.Assets) {
		return false
	}
	if len(a.Buttons) != len(b.Buttons) {
		return false
	}
	for i := range a.Buttons {
		if a.Buttons[i] != b.Buttons[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (a *Activity) Clone() *Activity {
	if a == nil {
		return nil
	}
	out := *a
	if a.Timestamps != nil {
		ts := *a.Timestamps
		out.Timestamps = &ts
	}
	if a.Assets != nil {
		as := *a.Assets
		out.Assets = &as
	}
	out.Buttons = append([]Button(nil), a.Buttons...)
	return &out
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
