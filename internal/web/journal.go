// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/myjournal/myjournal/internal/auth"
	"github.com/myjournal/myjournal/internal/journal"
)

// entryForm is the interactive entry form. Location is given as two
// decimal fields; both or neither must be set.
type entryForm struct {
	Mood    string `form:"mood" json:"mood"`
	Text    string `form:"entry" json:"entry"`
	Date    string `form:"date" json:"date"`
	Lat     string `form:"lat" json:"lat"`
	Lon     string `form:"lon" json:"lon"`
	Weather string `form:"weather" json:"weather"`
}

var formDateLayouts = []string{time.RFC3339, "2006-01-02"}

func (f entryForm) date() (*time.Time, error) {
	raw := strings.TrimSpace(f.Date)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range formDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, badRequest("date", errors.New("expected YYYY-MM-DD or RFC 3339"))
}

func (f entryForm) location() (*journal.Point, error) {
	lat, lon := strings.TrimSpace(f.Lat), strings.TrimSpace(f.Lon)
	if lat == "" && lon == "" {
		return nil, nil
	}
	if lat == "" || lon == "" {
		return nil, badRequest("location", errors.New("lat and lon must be given together"))
	}
	latV, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, badRequest("lat", err)
	}
	lonV, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil, badRequest("lon", err)
	}
	return journal.NewPoint(lonV, latV)
}

func (f entryForm) newEntry() (journal.NewEntry, error) {
	date, err := f.date()
	if err != nil {
		return journal.NewEntry{}, err
	}
	loc, err := f.location()
	if err != nil {
		return journal.NewEntry{}, err
	}
	in := journal.NewEntry{Mood: f.Mood, Text: f.Text, Location: loc, Weather: f.Weather}
	if date != nil {
		in.Date = *date
	}
	return in, nil
}

func (f entryForm) patch() (journal.EntryPatch, error) {
	date, err := f.date()
	if err != nil {
		return journal.EntryPatch{}, err
	}
	loc, err := f.location()
	if err != nil {
		return journal.EntryPatch{}, err
	}
	patch := journal.EntryPatch{Mood: f.Mood, Text: f.Text, Date: date, Location: loc}
	if f.Weather != "" {
		patch.Weather = &f.Weather
	}
	return patch, nil
}

func parseID(c *gin.Context) (ulid.ULID, error) {
	raw := c.Param("id")
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return ulid.ULID{}, noResource(raw)
	}
	return id, nil
}

// listEntries lists the caller's entries, or another owner's with ?owner=.
func (s *Server) listEntries(c *gin.Context, p *auth.Principal) {
	ctx := c.Request.Context()
	var (
		entries []*journal.Entry
		err     error
	)
	if raw := c.Query("owner"); raw != "" {
		owner, perr := ulid.ParseStrict(raw)
		if perr != nil {
			s.fail(c, badRequest("owner", perr))
			return
		}
		entries, err = s.journal.ListFor(ctx, p, owner)
	} else {
		entries, err = s.journal.List(ctx, p)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	if entries == nil {
		entries = []*journal.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) createEntryForm(c *gin.Context, p *auth.Principal) {
	var form entryForm
	if err := c.ShouldBind(&form); err != nil {
		s.fail(c, badRequest("body", err))
		return
	}
	in, err := form.newEntry()
	if err != nil {
		s.fail(c, err)
		return
	}
	s.create(c, p, in)
}

func (s *Server) createEntry(c *gin.Context, p *auth.Principal) {
	var in journal.NewEntry
	if err := c.ShouldBindJSON(&in); err != nil {
		s.fail(c, badRequest("body", err))
		return
	}
	s.create(c, p, in)
}

func (s *Server) create(c *gin.Context, p *auth.Principal, in journal.NewEntry) {
	e, err := s.journal.Create(c.Request.Context(), p, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": e})
}

func (s *Server) getEntry(c *gin.Context, p *auth.Principal) {
	id, err := parseID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	e, err := s.journal.Get(c.Request.Context(), p, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": e})
}

func (s *Server) modifyEntryForm(c *gin.Context, p *auth.Principal) {
	id, err := parseID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var form entryForm
	if err := c.ShouldBind(&form); err != nil {
		s.fail(c, badRequest("body", err))
		return
	}
	patch, err := form.patch()
	if err != nil {
		s.fail(c, err)
		return
	}
	s.update(c, p, id, patch)
}

func (s *Server) updateEntry(c *gin.Context, p *auth.Principal) {
	id, err := parseID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var patch journal.EntryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.fail(c, badRequest("body", err))
		return
	}
	s.update(c, p, id, patch)
}

func (s *Server) update(c *gin.Context, p *auth.Principal, id ulid.ULID, patch journal.EntryPatch) {
	e, err := s.journal.Update(c.Request.Context(), p, id, patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": e})
}

func (s *Server) deleteEntry(c *gin.Context, p *auth.Principal) {
	id, err := parseID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.journal.Delete(c.Request.Context(), p, id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
