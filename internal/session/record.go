package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"

	"github.com/pscheid92/pxsession/internal/domain"
	"github.com/pscheid92/pxsession/internal/pxapi"
)

const defaultUpdateIntervalSec = 120

// Key schema: one store key per persisted record field.
const (
	keyAppID          = "px_app_id"
	keyICToken        = "px_ic_token"
	keyICID           = "px_ic_id"
	keyExtID          = "px_ext_id"
	keyTransportType  = "px_transport_type"
	keyTransportToken = "px_transport_token"
	keyTags           = "px_tags"
	keyUpdateInterval = "px_update_interval_sec"
	keyOnscreenCount  = "px_onscreen_count"
	keyOnscreenSec    = "px_onscreen_sec"
	keyOnscreenStart  = "px_onscreen_start_ts"
	keyOnscreenStop   = "px_onscreen_stop_ts"
	keyNotifPerm      = "px_notif_perm"
)

// Snapshot is a point-in-time copy of the session record.
type Snapshot struct {
	State             domain.State
	AppID             string
	ICToken           string
	ICID              string
	ExtID             string
	TransportType     domain.TransportType
	TransportToken    string
	Tags              map[string]string
	UpdateIntervalSec int
	Presence          Presence
	Lifecycle         domain.LifecycleState
	NotifPermission   bool
}

func (r Snapshot) clone() Snapshot {
	r.Tags = maps.Clone(r.Tags)
	return r
}

type field struct {
	key   string
	value string
}

func fieldAppID(r *Snapshot) field          { return field{keyAppID, r.AppID} }
func fieldICToken(r *Snapshot) field        { return field{keyICToken, r.ICToken} }
func fieldICID(r *Snapshot) field           { return field{keyICID, r.ICID} }
func fieldExtID(r *Snapshot) field          { return field{keyExtID, r.ExtID} }
func fieldTransportType(r *Snapshot) field  { return field{keyTransportType, string(r.TransportType)} }
func fieldTransportToken(r *Snapshot) field { return field{keyTransportToken, r.TransportToken} }
func fieldNotifPerm(r *Snapshot) field      { return field{keyNotifPerm, strconv.FormatBool(r.NotifPermission)} }
func fieldUpdateInterval(r *Snapshot) field {
	return field{keyUpdateInterval, strconv.Itoa(r.UpdateIntervalSec)}
}

func fieldTags(r *Snapshot) field {
	b, err := json.Marshal(r.Tags)
	if err != nil {
		// map[string]string always marshals
		panic(err)
	}
	return field{keyTags, string(b)}
}

func presenceFields(r *Snapshot) []field {
	return []field{
		{keyOnscreenCount, strconv.FormatInt(r.Presence.Count, 10)},
		{keyOnscreenSec, strconv.FormatInt(r.Presence.Seconds, 10)},
		{keyOnscreenStart, strconv.FormatInt(r.Presence.StartTs, 10)},
		{keyOnscreenStop, strconv.FormatInt(r.Presence.StopTs, 10)},
	}
}

// saveFields writes fields one key at a time. Failures are logged; the
// in-memory record stays authoritative for the running process.
func saveFields(ctx context.Context, store domain.Store, fields ...field) {
	for _, f := range fields {
		if err := store.Set(ctx, f.key, f.value); err != nil {
			slog.WarnContext(ctx, "Failed to persist session field", "key", f.key, "error", err)
		}
	}
}

type loader struct {
	ctx   context.Context
	store domain.Store
	err   error
}

func (l *loader) str(key string) string {
	if l.err != nil {
		return ""
	}
	v, _, err := l.store.Get(l.ctx, key)
	if err != nil {
		l.err = fmt.Errorf("failed to load %s: %w", key, err)
	}
	return v
}

func (l *loader) int64(key string) int64 {
	raw := l.str(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		slog.WarnContext(l.ctx, "Ignoring unparsable persisted value", "key", key, "value", raw)
		return 0
	}
	return v
}

// loadRecord reads the persisted record and normalizes it for a fresh process:
// the lifecycle starts closed, future timestamps are clamped to now, and the
// state is derived from the persisted identity.
func loadRecord(ctx context.Context, store domain.Store, now int64) (Snapshot, error) {
	l := &loader{ctx: ctx, store: store}

	r := Snapshot{
		AppID:          l.str(keyAppID),
		ICToken:        l.str(keyICToken),
		ICID:           l.str(keyICID),
		ExtID:          l.str(keyExtID),
		TransportType:  domain.TransportType(l.str(keyTransportType)),
		TransportToken: l.str(keyTransportToken),
		Presence: Presence{
			Count:   l.int64(keyOnscreenCount),
			Seconds: l.int64(keyOnscreenSec),
			StartTs: l.int64(keyOnscreenStart),
			StopTs:  l.int64(keyOnscreenStop),
		},
		UpdateIntervalSec: int(l.int64(keyUpdateInterval)),
		Lifecycle:         domain.LifecycleClosed,
	}
	tagsRaw := l.str(keyTags)
	permRaw := l.str(keyNotifPerm)
	if l.err != nil {
		return Snapshot{}, l.err
	}

	r.Tags = map[string]string{}
	if tagsRaw != "" {
		if err := json.Unmarshal([]byte(tagsRaw), &r.Tags); err != nil {
			slog.WarnContext(ctx, "Ignoring unparsable persisted tags", "error", err)
			r.Tags = map[string]string{}
		}
	}
	r.NotifPermission, _ = strconv.ParseBool(permRaw)

	if r.UpdateIntervalSec < 1 || r.UpdateIntervalSec > pxapi.MaxUpdateIntervalSec {
		if r.UpdateIntervalSec != 0 {
			slog.WarnContext(ctx, "Ignoring out of range persisted update interval", "value", r.UpdateIntervalSec)
		}
		r.UpdateIntervalSec = defaultUpdateIntervalSec
	}
	r.Presence = clampPresence(r.Presence, now)

	if r.AppID != "" && r.ICToken != "" {
		r.State = domain.StateInitialized
	} else {
		r.State = domain.StateEmpty
	}
	return r, nil
}
