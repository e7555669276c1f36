package notifications

import (
	"slices"
	"sort"
)

// ResolveChannelEnabled reports whether channel is enabled for notifType given
// a user's stored rows. The most specific row wins regardless of row order:
//
//  1. exact (type, channel)
//  2. (type, "*")
//  3. ("*", channel)
//  4. channel listed in defaults.EnabledChannels
func ResolveChannelEnabled(prefs []Preference, defaults Defaults, notifType string, channel ChannelName) bool {
	var typeWild, channelWild *Preference

	for i := range prefs {
		p := &prefs[i]
		switch {
		case p.NotificationType == notifType && p.Channel == channel:
			return p.Enabled
		case p.NotificationType == notifType && p.Channel == Wildcard && typeWild == nil:
			typeWild = p
		case p.NotificationType == Wildcard && p.Channel == channel && channelWild == nil:
			channelWild = p
		}
	}

	if typeWild != nil {
		return typeWild.Enabled
	}
	if channelWild != nil {
		return channelWild.Enabled
	}
	return slices.Contains(defaults.EnabledChannels, channel)
}

// PreferenceUpdatesFromMatrix flattens a {type: {channel: enabled}} matrix into
// updates, sorted by type and channel so the write order is stable.
func PreferenceUpdatesFromMatrix(matrix map[string]map[ChannelName]bool) []PreferenceUpdate {
	var out []PreferenceUpdate
	for notifType, channels := range matrix {
		for channel, enabled := range channels {
			out = append(out, PreferenceUpdate{
				NotificationType: notifType,
				Channel:          channel,
				Enabled:          enabled,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NotificationType != out[j].NotificationType {
			return out[i].NotificationType < out[j].NotificationType
		}
		return out[i].Channel < out[j].Channel
	})
	return out
}

func (u PreferenceUpdate) validate() error {
	if u.NotificationType == "" || u.Channel == "" {
		return ErrInvalidPreference
	}
	return nil
}
