package main

import (
	"encoding/json"
	"net/http"

	"astroremote/backend/auth"

	log "github.com/sirupsen/logrus"
)

type ConfigPublicPreferencesPost struct {
	AutoConnect *bool  `json:"autoconnect,omitempty"`
	Brightness  *uint8 `json:"brightness,omitempty"`
}

func (b *Bridge) showConfig(w http.ResponseWriter, r *http.Request) {
	enableCors(&w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if !auth.HasReadRole(b.prefs.JwtSecret(), r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(b.snapshot()); err != nil {
		log.WithField("component", "http").Warnf("encode config: %v", err)
	}
}

func (b *Bridge) postPreferences(w http.ResponseWriter, r *http.Request) {
	enableCors(&w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if !auth.HasControlRole(b.prefs.JwtSecret(), r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	var post ConfigPublicPreferencesPost
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		returnErrorMessage(w, http.StatusUnprocessableEntity, err)
		return
	}
	if post.AutoConnect != nil {
		if err := b.prefs.SetAutoConnect(*post.AutoConnect); err != nil {
			returnErrorMessage(w, http.StatusUnprocessableEntity, err)
			return
		}
	}
	if post.Brightness != nil {
		if err := b.prefs.SetBrightness(*post.Brightness); err != nil {
			returnErrorMessage(w, http.StatusUnprocessableEntity, err)
			return
		}
	}
	log.WithField("component", "http").Infof("saved preferences autoconnect=%t brightness=%d", b.prefs.AutoConnect(), b.prefs.Brightness())
	w.WriteHeader(http.StatusNoContent)
}
