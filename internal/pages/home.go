package pages

import (
	"context"

	"github.com/a-h/templ"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/internal/storyapi"
	"github.com/pthm/hxnav/internal/storycache"
)

// Home lists recent stories.
type Home struct {
	deps Deps
}

func NewHome(deps Deps) *Home {
	return &Home{deps: deps}
}

func (p *Home) Render(ctx context.Context, v hxnav.Visit) (templ.Component, error) {
	return html(
		`<section class="home-page"><div class="container">`,
		`<a href="#story-list" class="skip-link">Skip to content</a>`,
		`<h2 class="page-section-title">Recent Stories</h2>`,
		hxnav.Slot("story-list", loading("Loading stories...")),
		hxnav.Slot("welcome", nil),
		`</div></section>`,
	), nil
}

func (p *Home) AfterRender(ctx context.Context, m *hxnav.Mount) error {
	tok := token(p.deps.Auth, m.Logger())
	if tok == "" {
		// Guests see the empty state; the welcome modal invites them to
		// log in.
		if err := m.Fill("story-list", emptyStories()); err != nil {
			return err
		}
		return m.Fill("welcome", showModal("welcome-modal"))
	}

	return m.Defer("story-list", func(ctx context.Context) (templ.Component, error) {
		list, err := p.deps.Stories.Stories(ctx, tok, storyapi.ListOptions{Size: p.deps.PageSize, Location: true})
		if err != nil {
			return errorBox("Failed to load stories: " + storyapi.Message(err)), nil
		}
		return storyGrid(list, p.deps.Language), nil
	})
}

func showModal(id string) templ.Component {
	return html(`<template data-show-modal="`, text(id), `"></template>`)
}

func emptyStories() templ.Component {
	return html(
		`<div class="story-container"><div class="empty-stories">`,
		`<div class="book-icon">`, iconBook, `</div>`,
		`<p class="empty-message">No stories available yet. Be the first to share your story!</p>`,
		`<a href="#/add" class="add-story-button">Add New Story</a>`,
		`</div></div>`,
	)
}

func storyGrid(list storycache.List, lang string) templ.Component {
	if len(list.Stories) == 0 {
		return html(when(list.Stale, offlineNotice()), emptyStories())
	}
	return html(
		when(list.Stale, offlineNotice()),
		`<div class="stories-grid">`,
		each(list.Stories, func(s storyapi.Story) templ.Component { return storyCard(s, lang) }),
		`</div>`,
	)
}

func storyCard(s storyapi.Story, lang string) templ.Component {
	return html(
		`<article class="story-item"><a href="#/detail/`, text(s.ID), `" class="story-link">`,
		`<div class="story-image-container"><img src="`, text(s.PhotoURL), `" alt="Story by `, text(s.Name), `" class="story-image" loading="lazy"/></div>`,
		`<div class="story-content">`,
		`<h2 class="story-name">`, text(s.Name), `</h2>`,
		`<p class="story-description">`, text(Excerpt(s.Description, 100)), `</p>`,
		`<p class="story-date">`, text(FormatDate(s.CreatedAt, lang)), `</p>`,
		when(s.HasLocation(), html(`<div class="story-location">`, iconLocation, ` Has location</div>`)),
		`</div></a></article>`,
	)
}
