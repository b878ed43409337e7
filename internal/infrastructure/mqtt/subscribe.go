package mqtt

import "fmt"

// Subscribe registers handler for topic, which may carry MQTT wildcards
// (the bridge listens on pawlink/command/+/+). The subscription is tracked
// and replayed after every reconnect, so callers subscribe exactly once.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTopicQoS(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.isConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	token := c.paho.Subscribe(topic, qos, c.wrapHandler(handler))
	ok := token.WaitTimeout(publishTimeout)
	err := token.Error()
	if ok && err == nil {
		return nil
	}

	// Failed subscriptions must not be resurrected by the next reconnect.
	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, publishTimeout)
	}
	return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
}
