package app

import (
	"encoding/json"
	"sync"
)

type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

// bandHub tracks one room per band. Rooms are created on first use and
// removed again once their last subscriber leaves.
type bandHub struct {
	mu    sync.Mutex
	rooms map[string]*bandRoom
}

func newBandHub() *bandHub {
	return &bandHub{rooms: make(map[string]*bandRoom)}
}

func (h *bandHub) room(bandID string) *bandRoom {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[bandID]
	if ok {
		return room
	}
	room = newBandRoom(bandID)
	h.rooms[bandID] = room
	return room
}

func (h *bandHub) leave(room *bandRoom, peer *wsPeer) {
	if room == nil || peer == nil {
		return
	}
	if room.leave(peer) {
		h.mu.Lock()
		if h.rooms[room.bandID] == room && room.empty() {
			delete(h.rooms, room.bandID)
		}
		h.mu.Unlock()
	}
}

// Publish delivers an event to every subscriber of the band. Delivery is
// at-most-once and best-effort: a peer whose write fails is dropped and
// simply misses later events.
func (h *bandHub) Publish(bandID string, event Event) {
	h.mu.Lock()
	room, ok := h.rooms[bandID]
	h.mu.Unlock()
	if !ok {
		return
	}

	for _, peer := range room.peers() {
		if err := peer.writeFrame(event); err != nil {
			h.leave(room, peer)
		}
	}
}

// Subscribers reports the current subscriber count for a band.
func (h *bandHub) Subscribers(bandID string) int {
	h.mu.Lock()
	room, ok := h.rooms[bandID]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	return len(room.peers())
}

type bandRoom struct {
	mu          sync.Mutex
	bandID      string
	subscribers map[*wsPeer]struct{}
}

func newBandRoom(bandID string) *bandRoom {
	return &bandRoom{
		bandID:      bandID,
		subscribers: make(map[*wsPeer]struct{}),
	}
}

func (r *bandRoom) join(peer *wsPeer) {
	r.mu.Lock()
	r.subscribers[peer] = struct{}{}
	r.mu.Unlock()
}

func (r *bandRoom) leave(peer *wsPeer) bool {
	r.mu.Lock()
	delete(r.subscribers, peer)
	empty := len(r.subscribers) == 0
	r.mu.Unlock()
	return empty
}

func (r *bandRoom) empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers) == 0
}

func (r *bandRoom) peers() []*wsPeer {
	r.mu.Lock()
	defer r.mu.Unlock()
	peers := make([]*wsPeer, 0, len(r.subscribers))
	for peer := range r.subscribers {
		peers = append(peers, peer)
	}
	return peers
}
