package payment

import "context"

type Repository interface {
	Insert(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
}
