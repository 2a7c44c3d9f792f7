package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/dtu-gateway/internal/storage"
)

// Repository 上行数据入库（rcv_data 表）
type Repository struct {
	Pool *pgxpool.Pool
}

// Save 实现 storage.Sink
func (r *Repository) Save(ctx context.Context, rd storage.Reading) error {
	const q = `INSERT INTO rcv_data (dtu_no, rcv_time, rcv_data, registers)
               VALUES ($1, $2, $3, $4)`
	var regs []byte
	if len(rd.Registers) > 0 {
		b, err := json.Marshal(rd.Registers)
		if err != nil {
			return fmt.Errorf("marshal registers: %w", err)
		}
		regs = b
	}
	_, err := r.Pool.Exec(ctx, q, rd.DTU, rd.ReceivedAt, rd.RawHex, regs)
	return err
}
