package health

import "sync/atomic"

// Readiness 就绪状态：UDP 必须就绪，数据库仅在启用时要求就绪
type Readiness struct {
	dbRequired atomic.Bool
	dbReady    atomic.Bool
	udpReady   atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) RequireDB(v bool)   { r.dbRequired.Store(v) }
func (r *Readiness) SetDBReady(v bool)  { r.dbReady.Store(v) }
func (r *Readiness) SetUDPReady(v bool) { r.udpReady.Store(v) }

// Ready 总体就绪
func (r *Readiness) Ready() bool {
	if r.dbRequired.Load() && !r.dbReady.Load() {
		return false
	}
	return r.udpReady.Load()
}
