package notifications

import (
	"fmt"
)

// Channels maps each channel kind to a pure function rendering data of type T
// into that channel's content. Nil entries mean the notification is not sent
// on that channel.
type Channels[T any] struct {
	Email func(data T) EmailContent
	InApp func(data T) InAppContent
}

// Definition describes a notification type. It is immutable once built.
type Definition struct {
	Key         string
	Description string
	// Critical notifications bypass preference gating (auth emails and the like).
	Critical bool

	renderers []renderer
}

type renderer struct {
	channel ChannelName
	render  func(data any) (Content, error)
}

// DefinitionOption configures a Definition.
type DefinitionOption func(*Definition)

// Critical marks the definition as bypassing user preferences.
func Critical() DefinitionOption {
	return func(d *Definition) { d.Critical = true }
}

// Describe attaches a human readable description.
func Describe(text string) DefinitionOption {
	return func(d *Definition) { d.Description = text }
}

// Define builds a Definition whose content functions receive data of type T.
// Send must then be called with Data of type T, or nil for the zero value.
//
//	welcome := notifications.Define("welcome", notifications.Channels[WelcomeData]{
//	    InApp: func(d WelcomeData) notifications.InAppContent {
//	        return notifications.InAppContent{Title: "Welcome, " + d.Name}
//	    },
//	})
func Define[T any](key string, channels Channels[T], opts ...DefinitionOption) Definition {
	d := Definition{Key: key}
	for _, opt := range opts {
		opt(&d)
	}

	if channels.Email != nil {
		fn := channels.Email
		d.renderers = append(d.renderers, renderer{
			channel: ChannelEmail,
			render: func(data any) (Content, error) {
				v, err := castData[T](key, data)
				if err != nil {
					return nil, err
				}
				return fn(v), nil
			},
		})
	}
	if channels.InApp != nil {
		fn := channels.InApp
		d.renderers = append(d.renderers, renderer{
			channel: ChannelInApp,
			render: func(data any) (Content, error) {
				v, err := castData[T](key, data)
				if err != nil {
					return nil, err
				}
				return fn(v), nil
			},
		})
	}

	return d
}

// Channels lists the channels the definition renders content for, in declaration order.
func (d Definition) Channels() []ChannelName {
	out := make([]ChannelName, len(d.renderers))
	for i, r := range d.renderers {
		out[i] = r.channel
	}
	return out
}

// Render computes the content for one channel.
func (d Definition) Render(channel ChannelName, data any) (Content, error) {
	for _, r := range d.renderers {
		if r.channel == channel {
			return r.render(data)
		}
	}
	return nil, fmt.Errorf("%w: %q is not defined for notification %q", ErrUnknownChannel, channel, d.Key)
}

func castData[T any](key string, data any) (T, error) {
	var zero T
	if data == nil {
		return zero, nil
	}
	v, ok := data.(T)
	if !ok {
		return zero, fmt.Errorf("%w: notification %q expects %T, got %T", ErrInvalidData, key, zero, data)
	}
	return v, nil
}
