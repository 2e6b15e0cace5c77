// Package state tracks which transcriptions have already been uploaded to Notion.
package state

import (
	"encoding/json"
	"sort"
	"time"
)

// SyncState records uploaded transcription ids. SyncedIDs only grows.
type SyncState struct {
	SyncedIDs            map[string]struct{}
	LastSyncTime         *time.Time
	NotionCachePopulated bool
}

// New returns an empty state.
func New() *SyncState {
	return &SyncState{SyncedIDs: make(map[string]struct{})}
}

// IsSynced reports whether id has already been uploaded.
func (s *SyncState) IsSynced(id string) bool {
	_, ok := s.SyncedIDs[id]
	return ok
}

// MarkSynced records a successful upload of id.
func (s *SyncState) MarkSynced(id string) {
	s.SyncedIDs[id] = struct{}{}
	now := time.Now()
	s.LastSyncTime = &now
}

// MergeRemoteIDs unions ids found in Notion into the state and marks the
// remote inventory as reconciled.
func (s *SyncState) MergeRemoteIDs(ids []string) {
	s.AddIDs(ids)
	s.NotionCachePopulated = true
}

// AddIDs unions ids into the state without touching any other field.
func (s *SyncState) AddIDs(ids []string) {
	for _, id := range ids {
		if id != "" {
			s.SyncedIDs[id] = struct{}{}
		}
	}
}

// Len returns the number of synced ids.
func (s *SyncState) Len() int {
	return len(s.SyncedIDs)
}

// fileFormat is the on-disk JSON layout, shared with earlier releases of the tool.
type fileFormat struct {
	SyncedIDs            []string `json:"synced_ids"`
	LastSyncTime         *string  `json:"last_sync_time"`
	NotionCachePopulated bool     `json:"notion_cache_populated"`
}

// lastSyncLayouts are accepted for last_sync_time. Older files carry naive
// ISO-8601 timestamps without a zone.
var lastSyncLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// MarshalJSON implements json.Marshaler. Ids are written sorted so saves are stable.
func (s *SyncState) MarshalJSON() ([]byte, error) {
	ff := fileFormat{
		SyncedIDs:            make([]string, 0, len(s.SyncedIDs)),
		NotionCachePopulated: s.NotionCachePopulated,
	}
	for id := range s.SyncedIDs {
		ff.SyncedIDs = append(ff.SyncedIDs, id)
	}
	sort.Strings(ff.SyncedIDs)
	if s.LastSyncTime != nil {
		ts := s.LastSyncTime.Format(time.RFC3339Nano)
		ff.LastSyncTime = &ts
	}
	return json.Marshal(ff)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *SyncState) UnmarshalJSON(data []byte) error {
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return err
	}

	s.SyncedIDs = make(map[string]struct{}, len(ff.SyncedIDs))
	s.AddIDs(ff.SyncedIDs)
	s.NotionCachePopulated = ff.NotionCachePopulated
	s.LastSyncTime = nil
	if ff.LastSyncTime != nil {
		for _, layout := range lastSyncLayouts {
			if t, err := time.ParseInLocation(layout, *ff.LastSyncTime, time.Local); err == nil {
				s.LastSyncTime = &t
				break
			}
		}
	}
	return nil
}
