package pipeline

import "github.com/amenzhinsky/azcore/result"

// Collection is a policy that broadcasts every event to a set of
// subclient policies before forwarding it along its own chain. It lets
// several protocol clients share one connection as orthogonal regions.
type Collection struct {
	Policy

	clients []*Policy
}

// InitCollection wires the collection's handlers and neighbors.
func (c *Collection) InitCollection(outbound, inbound *Policy) {
	c.LinkOutbound(outbound)
	c.LinkInbound(inbound)
	c.OutboundHandler = c.processOutbound
	c.InboundHandler = c.processInbound
}

// AddClient appends a subclient and rewires its neighbors to the
// collection's own, so the subclient forwards past the collection.
func (c *Collection) AddClient(client *Policy) {
	client.LinkOutbound(c.OutboundNext())
	if c.InboundNext() != nil {
		client.LinkInbound(c.InboundNext())
	}
	c.clients = append(c.clients, client)
}

// RemoveClient unlinks a previously added subclient.
func (c *Collection) RemoveClient(client *Policy) error {
	for i, p := range c.clients {
		if p == client {
			c.clients = append(c.clients[:i], c.clients[i+1:]...)
			return nil
		}
	}
	return result.ErrItemNotFound
}

// ClientsCount returns the number of attached subclients.
func (c *Collection) ClientsCount() int {
	return len(c.clients)
}

func (c *Collection) processOutbound(e Event) error {
	for _, client := range c.clients {
		if client.OutboundHandler != nil {
			if err := client.OutboundHandler(e); result.Failed(err) {
				return err
			}
		}
	}
	return c.SendOutbound(e)
}

func (c *Collection) processInbound(e Event) error {
	for _, client := range c.clients {
		if client.InboundHandler != nil {
			if err := client.InboundHandler(e); result.Failed(err) {
				return err
			}
		}
	}
	if c.InboundNext() == nil {
		return nil
	}
	return c.SendInbound(e)
}
