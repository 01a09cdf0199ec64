package presence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Occupancy is the number of clients in a room.
type Occupancy struct {
	Room      string `json:"room"`
	Occupants int    `json:"occupants"`
}

// Store mirrors which clients are in which room, for the HTTP API and for
// operators watching several relays.
type Store interface {
	Reset(ctx context.Context) error
	Join(ctx context.Context, room, clientID string) error
	Leave(ctx context.Context, room, clientID string) error
	Rooms(ctx context.Context) ([]Occupancy, error)
}

// MemoryStore keeps presence in process.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]map[string]struct{})}
}

func (s *MemoryStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = make(map[string]map[string]struct{})
	return nil
}

func (s *MemoryStore) Join(_ context.Context, room, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		s.rooms[room] = members
	}
	members[clientID] = struct{}{}
	return nil
}

func (s *MemoryStore) Leave(_ context.Context, room, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.rooms[room]
	if !ok {
		return nil
	}
	delete(members, clientID)
	if len(members) == 0 {
		delete(s.rooms, room)
	}
	return nil
}

func (s *MemoryStore) Rooms(context.Context) ([]Occupancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Occupancy, 0, len(s.rooms))
	for room, members := range s.rooms {
		out = append(out, Occupancy{Room: room, Occupants: len(members)})
	}
	sortOccupancy(out)
	return out, nil
}

// RedisStore implements Store with one Redis set per room plus an index set
// of room names.
type RedisStore struct {
	rdb      *redis.Client
	prefix   string
	keyRooms string
}

// NewRedisStore builds a presence store backed by Redis. Prefix is optional (e.g., "peercall:relay-1").
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "peercall"
	}
	return &RedisStore{
		rdb:      rdb,
		prefix:   p,
		keyRooms: fmt.Sprintf("%s:rooms", p),
	}
}

func (s *RedisStore) roomKey(room string) string {
	return fmt.Sprintf("%s:room:%s", s.prefix, room)
}

func (s *RedisStore) Reset(ctx context.Context) error {
	rooms, err := s.rdb.SMembers(ctx, s.keyRooms).Result()
	if err != nil {
		return err
	}
	keys := []string{s.keyRooms}
	for _, room := range rooms {
		keys = append(keys, s.roomKey(room))
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *RedisStore) Join(ctx context.Context, room, clientID string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.roomKey(room), clientID)
		pipe.SAdd(ctx, s.keyRooms, room)
		return nil
	})
	return err
}

func (s *RedisStore) Leave(ctx context.Context, room, clientID string) error {
	if err := s.rdb.SRem(ctx, s.roomKey(room), clientID).Err(); err != nil {
		return err
	}
	n, err := s.rdb.SCard(ctx, s.roomKey(room)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.rdb.SRem(ctx, s.keyRooms, room).Err()
	}
	return nil
}

func (s *RedisStore) Rooms(ctx context.Context) ([]Occupancy, error) {
	rooms, err := s.rdb.SMembers(ctx, s.keyRooms).Result()
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.IntCmd, len(rooms))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, room := range rooms {
			cmds[i] = pipe.SCard(ctx, s.roomKey(room))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]Occupancy, 0, len(rooms))
	for i, room := range rooms {
		if n := cmds[i].Val(); n > 0 {
			out = append(out, Occupancy{Room: room, Occupants: int(n)})
		}
	}
	sortOccupancy(out)
	return out, nil
}

func sortOccupancy(rooms []Occupancy) {
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Room < rooms[j].Room })
}
