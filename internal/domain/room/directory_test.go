package room

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/webitel/im-signaling-service/internal/domain/model"
)

func newConn() model.Connector {
	return model.NewConnector(context.Background(), model.ConnectMetadata{Transport: "test"}, 8)
}

func TestDirectory_Join_Creates_Room_And_Records_Key(t *testing.T) {
	req := require.New(t)
	d := NewDirectory()
	c1 := newConn()

	// When a connection joins an absent room
	res := d.Join("5-9", c1)

	// Then the room exists with one member
	req.True(res.Added)
	req.False(res.Ready)
	req.Len(res.Members, 1)
	req.Empty(res.Others(c1))
	req.True(d.Exists("5-9"))
	req.Equal(model.RoomKey("5-9"), c1.RoomKey())
}

func TestDirectory_Ready_Fires_Once_Per_Threshold_Crossing(t *testing.T) {
	req := require.New(t)
	d := NewDirectory()
	c1, c2, c3 := newConn(), newConn(), newConn()

	req.False(d.Join("5-9", c1).Ready)

	// When the second member joins
	second := d.Join("5-9", c2)

	// Then the room becomes ready
	req.True(second.Ready)
	req.Len(second.Members, 2)
	req.Len(second.Others(c2), 1)

	// And a third member does not re-fire readiness
	req.False(d.Join("5-9", c3).Ready)

	// And a re-join changes nothing
	again := d.Join("5-9", c2)
	req.False(again.Added)
	req.False(again.Ready)
	req.Len(d.Members("5-9"), 3)
}

func TestDirectory_Ready_Fires_Again_After_Dropping_Below_Threshold(t *testing.T) {
	req := require.New(t)
	d := NewDirectory()
	c1, c2 := newConn(), newConn()

	d.Join("5-9", c1)
	req.True(d.Join("5-9", c2).Ready)

	// When a member leaves and comes back
	_, ok := d.Leave(c2)
	req.True(ok)

	// Then the crossing from below fires again
	req.True(d.Join("5-9", c2).Ready)
}

func TestDirectory_Leave_Deletes_Empty_Room(t *testing.T) {
	req := require.New(t)
	d := NewDirectory()
	c1, c2 := newConn(), newConn()
	d.Join("5-9", c1)
	d.Join("5-9", c2)

	// When the first member leaves
	res, ok := d.Leave(c1)

	// Then the other member remains
	req.True(ok)
	req.False(res.Deleted)
	req.Len(res.Remaining, 1)
	req.Equal(model.RoomKey(""), c1.RoomKey())

	// When the last member leaves
	res, ok = d.Leave(c2)

	// Then the room is gone
	req.True(ok)
	req.True(res.Deleted)
	req.Empty(res.Remaining)
	req.False(d.Exists("5-9"))
	req.Zero(d.Len())
}

func TestDirectory_Leave_Without_Room_Is_Noop(t *testing.T) {
	req := require.New(t)
	d := NewDirectory()

	_, ok := d.Leave(newConn())
	req.False(ok)

	_, ok = d.Leave(nil)
	req.False(ok)
}

func TestDirectory_Join_Another_Room_Leaves_Previous(t *testing.T) {
	req := require.New(t)
	d := NewDirectory()
	c1, c2 := newConn(), newConn()
	d.Join("5-9", c1)
	d.Join("5-9", c2)

	// When c1 moves to another room
	res := d.Join("5-7", c1)

	// Then it left the previous one, which kept c2
	req.NotNil(res.Left)
	req.Equal(model.RoomKey("5-9"), res.Left.Key)
	req.Len(res.Left.Remaining, 1)
	req.False(d.IsMember("5-9", c1))
	req.True(d.IsMember("5-7", c1))
	req.Equal(model.RoomKey("5-7"), c1.RoomKey())
}

func TestDirectory_Custom_Ready_Threshold(t *testing.T) {
	req := require.New(t)
	d := NewDirectory(WithReadyThreshold(3))

	req.False(d.Join("k", newConn()).Ready)
	req.False(d.Join("k", newConn()).Ready)
	req.True(d.Join("k", newConn()).Ready)
}

func TestDirectory_Concurrent_Join_Leave_Leaves_No_Empty_Rooms(t *testing.T) {
	req := require.New(t)
	d := NewDirectory()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newConn()
			for j := 0; j < 50; j++ {
				d.Join("5-9", c)
				d.Leave(c)
			}
		}()
	}
	wg.Wait()

	// Then every room that is left has members
	req.False(d.Exists("5-9"))
	req.Zero(d.Len())
}

func TestDirectory_Ready_Observed_Exactly_Once_Under_Concurrency(t *testing.T) {
	req := require.New(t)
	d := NewDirectory()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ready int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.Join("5-9", newConn()).Ready {
				mu.Lock()
				ready++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	req.Equal(1, ready)
	req.Len(d.Members("5-9"), 32)
}
