package udpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	cfgpkg "github.com/taoyao-code/dtu-gateway/internal/config"
)

// TransportError 下发失败
type TransportError struct {
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("udp send to %s: %v", e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrNotStarted 套接字尚未打开或已关闭
var ErrNotStarted = errors.New("udp server not started")

// HandlerFunc 上行数据报回调；data 在回调返回后仍归调用方所有
type HandlerFunc func(ctx context.Context, data []byte, from *net.UDPAddr)

// Server DDP 网关 UDP 服务：单个读循环按到达顺序逐个处理数据报
type Server struct {
	cfg     cfgpkg.UDPConfig
	conn    *net.UDPConn
	handler HandlerFunc
	limiter *SourceLimiter

	mu     sync.RWMutex
	wg     sync.WaitGroup
	cancel context.CancelFunc

	// 可选指标回调
	onRecv        func(n int)
	onSend        func(n int, err error)
	onRateLimited func()
}

// New 创建 UDP 服务
func New(cfg cfgpkg.UDPConfig) *Server {
	s := &Server{cfg: cfg}
	if cfg.RateLimit.Enable {
		s.limiter = NewSourceLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	}
	return s
}

// SetHandler 设置上行数据报处理回调
func (s *Server) SetHandler(h HandlerFunc) { s.handler = h }

// SetMetricsCallbacks 设置指标回调
func (s *Server) SetMetricsCallbacks(onRecv func(int), onSend func(int, error), onRateLimited func()) {
	s.onRecv, s.onSend, s.onRateLimited = onRecv, onSend, onRateLimited
}

// LocalAddr 实际监听地址（":0" 时用于获取端口）
func (s *Server) LocalAddr() *net.UDPAddr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Start 打开套接字并启动读循环（非阻塞）
func (s *Server) Start(ctx context.Context) error {
	laddr, err := net.ResolveUDPAddr("udp4", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("resolve udp addr: %w", err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.mu.Unlock()

	size := s.cfg.ReadBuffer
	if size <= 0 {
		size = 4096
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		buf := make([]byte, size)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				// 短暂错误等待后重试
				time.Sleep(50 * time.Millisecond)
				continue
			}
			if s.onRecv != nil {
				s.onRecv(n)
			}
			if s.limiter != nil && !s.limiter.Allow(from.IP.String()) {
				if s.onRateLimited != nil {
					s.onRateLimited()
				}
				continue
			}
			if s.handler != nil {
				data := make([]byte, n)
				copy(data, buf[:n])
				s.handler(ctx, data, from)
			}
		}
	}()

	if s.limiter != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.limiter.RunCleanup(ctx, time.Minute)
		}()
	}
	return nil
}

// Send 向指定地址发送一个数据报；失败返回 *TransportError，不重试
func (s *Server) Send(addr *net.UDPAddr, b []byte) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return &TransportError{Addr: addr.String(), Err: ErrNotStarted}
	}

	if s.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	n, err := conn.WriteToUDP(b, addr)
	if s.onSend != nil {
		s.onSend(n, err)
	}
	if err != nil {
		return &TransportError{Addr: addr.String(), Err: err}
	}
	return nil
}

// Shutdown 关闭套接字并等待读循环退出；之后的 Send 直接失败
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	conn, cancel := s.conn, s.cancel
	s.conn = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}

	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}
