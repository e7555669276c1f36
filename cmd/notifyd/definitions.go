package main

import (
	"encoding/json"
	"fmt"
	"html"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

type welcomeData struct {
	Name string `json:"name"`
}

type magicLinkData struct {
	URL string `json:"url"`
}

type commentData struct {
	Author  string `json:"author"`
	Excerpt string `json:"excerpt"`
	URL     string `json:"url"`
}

// catalog pairs each definition with a decoder for its JSON data.
type catalog struct {
	definitions []notifications.Definition
	decoders    map[string]func(json.RawMessage) (any, error)
}

func decodeAs[T any](raw json.RawMessage) (any, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", notifications.ErrInvalidData, err)
	}
	return v, nil
}

func newCatalog(appName string) catalog {
	return catalog{
		definitions: []notifications.Definition{
			notifications.Define("welcome", notifications.Channels[welcomeData]{
				InApp: func(d welcomeData) notifications.InAppContent {
					return notifications.InAppContent{
						Title: fmt.Sprintf("Welcome to %s, %s", appName, d.Name),
						URL:   "/getting-started",
					}
				},
			}, notifications.Describe("Greets a user after sign-up")),

			notifications.Define("magic-link", notifications.Channels[magicLinkData]{
				Email: func(d magicLinkData) notifications.EmailContent {
					return notifications.EmailContent{
						Subject: "Your sign-in link",
						HTML:    fmt.Sprintf(`<p><a href="%s">Sign in to %s</a></p>`, html.EscapeString(d.URL), html.EscapeString(appName)),
						Text:    "Sign in: " + d.URL,
					}
				},
			}, notifications.Critical(), notifications.Describe("Passwordless sign-in link")),

			notifications.Define("comment", notifications.Channels[commentData]{
				Email: func(d commentData) notifications.EmailContent {
					return notifications.EmailContent{
						Subject: d.Author + " commented",
						HTML:    fmt.Sprintf("<p>%s</p><p><a href=\"%s\">Reply</a></p>", html.EscapeString(d.Excerpt), html.EscapeString(d.URL)),
						Text:    d.Excerpt + "\n\n" + d.URL,
					}
				},
				InApp: func(d commentData) notifications.InAppContent {
					return notifications.InAppContent{Title: d.Author + " commented", Body: d.Excerpt, URL: d.URL}
				},
			}, notifications.Describe("New comment on a thread the user follows")),
		},
		decoders: map[string]func(json.RawMessage) (any, error){
			"welcome":    decodeAs[welcomeData],
			"magic-link": decodeAs[magicLinkData],
			"comment":    decodeAs[commentData],
		},
	}
}
