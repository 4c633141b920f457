package model

// EnableOffset enables r and disables every other enabled rule in c that
// uses the same model key. This is the only way an offset rule should be
// switched on.
func EnableOffset(c *EntityConfig, r *OffsetRule) error {
	if c.offsetIndex(r) < 0 {
		return ErrRuleNotOwned
	}
	r.Enabled = true
	for _, o := range c.Offsets {
		if o != r && o.Enabled && o.ModelKey.Equal(r.ModelKey) {
			o.Enabled = false
		}
	}
	return nil
}

func DisableOffset(c *EntityConfig, r *OffsetRule) error {
	if c.offsetIndex(r) < 0 {
		return ErrRuleNotOwned
	}
	r.Enabled = false
	return nil
}

// OffsetDuplicates lists the enabled rules EnableOffset(c, r) would disable.
func OffsetDuplicates(c *EntityConfig, r *OffsetRule) []*OffsetRule {
	var out []*OffsetRule
	for _, o := range c.Offsets {
		if o != r && o.Enabled && o.ModelKey.Equal(r.ModelKey) {
			out = append(out, o)
		}
	}
	return out
}

// EnableEmote enables r and disables every other enabled rule whose emote
// class intersects r's.
func EnableEmote(c *EntityConfig, r *EmoteRule) error {
	if c.emoteIndex(r) < 0 {
		return ErrRuleNotOwned
	}
	r.Enabled = true
	for _, e := range c.Emotes {
		if e != r && e.Enabled && e.Overlaps(r) {
			e.Enabled = false
		}
	}
	return nil
}

func DisableEmote(c *EntityConfig, r *EmoteRule) error {
	if c.emoteIndex(r) < 0 {
		return ErrRuleNotOwned
	}
	r.Enabled = false
	return nil
}

// EmoteDuplicates lists the enabled rules EnableEmote(c, r) would disable.
func EmoteDuplicates(c *EntityConfig, r *EmoteRule) []*EmoteRule {
	var out []*EmoteRule
	for _, e := range c.Emotes {
		if e != r && e.Enabled && e.Overlaps(r) {
			out = append(out, e)
		}
	}
	return out
}
