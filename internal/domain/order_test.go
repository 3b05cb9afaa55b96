package domain

import "testing"

func TestOrderFillable(t *testing.T) {
	tests := []struct {
		name    string
		posType PositionType
		status  OrderStatus
		limit   float64
		mark    float64
		want    bool
	}{
		{"long fills at limit", PositionTypeLong, OrderStatusOpen, 100, 100, true},
		{"long fills below limit", PositionTypeLong, OrderStatusOpen, 100, 99, true},
		{"long waits above limit", PositionTypeLong, OrderStatusOpen, 100, 101, false},
		{"short fills at limit", PositionTypeShort, OrderStatusOpen, 100, 100, true},
		{"short fills above limit", PositionTypeShort, OrderStatusOpen, 100, 101, true},
		{"short waits below limit", PositionTypeShort, OrderStatusOpen, 100, 99, false},
		{"filled order never fillable", PositionTypeLong, OrderStatusFilled, 100, 90, false},
		{"cancelled order never fillable", PositionTypeLong, OrderStatusCancelled, 100, 90, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Order{
				PositionType: tt.posType,
				Status:       tt.status,
				Price:        tt.limit,
			}
			if got := o.Fillable(tt.mark); got != tt.want {
				t.Errorf("Fillable(%v) = %v, want %v", tt.mark, got, tt.want)
			}
		})
	}
}
