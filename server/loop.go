package server

// Start 启动频道的事件循环（单协程串行处理加入、离开、广播）
func (c *Channel) Start() {
	if c.started {
		return
	}
	c.started = true
	go func() {
		for {
			select {
			case req := <-c.joinChan:
				c.join(req)
			case req := <-c.leaveChan:
				c.leave(req)
			case req := <-c.publishChan:
				c.fanout(req)
			}
		}
	}()
}
