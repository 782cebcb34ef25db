package client

import (
	"net"
	"time"
)

type (
	connReturn struct {
		conn net.Conn
		err  error
	}
	connectionPool struct {
		address        string
		chanConnGet    chan chan net.Conn
		chanConnReturn chan connReturn
		chanDrainPool  chan struct{}
		done           chan struct{}
	}
)

func newConnectionPool(address string, connectionPoolSize int, waitTimeout time.Duration) *connectionPool {
	connPool := &connectionPool{
		address:        address,
		chanConnGet:    make(chan chan net.Conn),
		chanConnReturn: make(chan connReturn),
		chanDrainPool:  make(chan struct{}),
		done:           make(chan struct{}),
	}
	go connPool.run(connectionPoolSize, waitTimeout)
	return connPool
}

// get waits for a free connection, nil if none became available in time
func (c *connectionPool) get() net.Conn {
	chanConn := make(chan net.Conn, 1)
	select {
	case <-c.done:
		return nil
	case c.chanConnGet <- chanConn:
	}
	select {
	case <-c.done:
		return nil
	case conn := <-chanConn:
		return conn
	}
}

// put returns a connection, broken ones are closed and redialed
func (c *connectionPool) put(conn net.Conn, err error) {
	select {
	case <-c.done:
		_ = conn.Close()
	case c.chanConnReturn <- connReturn{conn: conn, err: err}:
	}
}

func (c *connectionPool) drain() {
	select {
	case <-c.done:
	case c.chanDrainPool <- struct{}{}:
		<-c.done
	}
}

func (c *connectionPool) run(connectionPoolSize int, waitTimeout time.Duration) {
	type poolEntry struct {
		busy bool
		err  error
		conn net.Conn
	}
	type waitPoolEntry struct {
		entryTime time.Time
		chanConn  chan net.Conn
	}

	var (
		connectionPool = make([]*poolEntry, connectionPoolSize)
		waitPool       []*waitPoolEntry
		ticker         = time.NewTicker(waitTimeout)
	)
	defer ticker.Stop()
	for i := range connectionPool {
		connectionPool[i] = &poolEntry{}
	}

RunLoop:
	for {
		select {
		case <-c.chanDrainPool:
			for _, waitPoolEntry := range waitPool {
				waitPoolEntry.chanConn <- nil
			}
			break RunLoop
		case <-ticker.C:
		case chanReturnNextConn := <-c.chanConnGet:
			waitPool = append(waitPool, &waitPoolEntry{
				chanConn:  chanReturnNextConn,
				entryTime: time.Now(),
			})
		case connReturn := <-c.chanConnReturn:
			for _, poolEntry := range connectionPool {
				if connReturn.conn == poolEntry.conn {
					poolEntry.busy = false
					if connReturn.err != nil {
						_ = poolEntry.conn.Close()
						poolEntry.conn = nil
					}
				}
			}
		}
		// refill connection pool
		for _, poolEntry := range connectionPool {
			if poolEntry.conn == nil {
				poolEntry.conn, poolEntry.err = net.DialTimeout("tcp", c.address, waitTimeout)
			}
		}
		// redistribute available connections, first come first served
		for _, poolEntry := range connectionPool {
			if len(waitPool) == 0 {
				break
			}
			if poolEntry.err == nil && poolEntry.conn != nil && !poolEntry.busy {
				poolEntry.busy = true
				waitPool[0].chanConn <- poolEntry.conn
				waitPool = waitPool[1:]
			}
		}
		// waitpool cleanup
		now := time.Now()
		waiting := waitPool[:0]
		for _, waitPoolEntry := range waitPool {
			if now.Sub(waitPoolEntry.entryTime) > waitTimeout {
				waitPoolEntry.chanConn <- nil
				continue
			}
			waiting = append(waiting, waitPoolEntry)
		}
		waitPool = waiting
	}

	for _, poolEntry := range connectionPool {
		if poolEntry.conn != nil {
			_ = poolEntry.conn.Close()
		}
	}
	close(c.done)
}
