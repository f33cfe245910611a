package node

import (
	"sort"

	"github.com/diesing/rt-share/internal/peer"
	"github.com/diesing/rt-share/internal/signaling"
)

// PeerRecord is a peer the relay has reported during this run. Records are
// kept when the peer goes offline.
type PeerRecord struct {
	ID          string
	NetworkHint string
	Online      bool
}

// Roster is the node's view of who is online. It is owned by the event loop.
type Roster struct {
	self  string
	peers map[string]*PeerRecord
}

var _ peer.Roster = (*Roster)(nil)

func NewRoster(self string) *Roster {
	return &Roster{self: self, peers: make(map[string]*PeerRecord)}
}

// Replace applies a full roster: listed peers are online, all others offline.
func (r *Roster) Replace(infos []signaling.PeerInfo) bool {
	online := make(map[string]signaling.PeerInfo, len(infos))
	for _, info := range infos {
		if info.ID != "" && info.ID != r.self {
			online[info.ID] = info
		}
	}

	changed := false
	for id, rec := range r.peers {
		if _, ok := online[id]; !ok && rec.Online {
			rec.Online = false
			changed = true
		}
	}
	for _, info := range online {
		if r.Join(info) {
			changed = true
		}
	}
	return changed
}

// Join marks a peer online. It reports whether anything changed.
func (r *Roster) Join(info signaling.PeerInfo) bool {
	if info.ID == "" || info.ID == r.self {
		return false
	}

	rec, ok := r.peers[info.ID]
	if !ok {
		r.peers[info.ID] = &PeerRecord{ID: info.ID, NetworkHint: info.IP, Online: true}
		return true
	}

	changed := !rec.Online
	rec.Online = true
	if info.IP != "" && info.IP != rec.NetworkHint {
		rec.NetworkHint = info.IP
		changed = true
	}
	return changed
}

func (r *Roster) Leave(id string) bool {
	rec, ok := r.peers[id]
	if !ok || !rec.Online {
		return false
	}
	rec.Online = false
	return true
}

// MarkAllOffline is used when the relay connection is lost.
func (r *Roster) MarkAllOffline() bool {
	changed := false
	for _, rec := range r.peers {
		if rec.Online {
			rec.Online = false
			changed = true
		}
	}
	return changed
}

func (r *Roster) IsOnline(id string) bool {
	rec, ok := r.peers[id]
	return ok && rec.Online
}

func (r *Roster) OnlinePeers() []string {
	var ids []string
	for id, rec := range r.peers {
		if rec.Online {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// List returns copies of every record, sorted by id.
func (r *Roster) List() []PeerRecord {
	out := make([]PeerRecord, 0, len(r.peers))
	for _, rec := range r.peers {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
