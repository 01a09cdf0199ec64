package signaling

// Capacity is the number of participants a room holds.
const Capacity = 2

// Room is a named meeting point for at most two clients. The first member
// is the one that created it.
type Room struct {
	Name    string
	Members []*Client
}

func (r *Room) full() bool {
	return len(r.Members) >= Capacity
}

func (r *Room) add(c *Client) {
	r.Members = append(r.Members, c)
}

// remove drops c and reports whether it was a member.
func (r *Room) remove(c *Client) bool {
	for i, m := range r.Members {
		if m == c {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return true
		}
	}
	return false
}

// other returns the member that is not c, or nil.
func (r *Room) other(c *Client) *Client {
	for _, m := range r.Members {
		if m != c {
			return m
		}
	}
	return nil
}
