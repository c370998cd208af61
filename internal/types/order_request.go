package types

import "encoding/json"

// OrderRequest mirrors the upstream order request document. It is persisted
// verbatim in Order.OrderData; the engine only reads the handful of fields
// extracted below and treats the rest as opaque.
type OrderRequest struct {
	Session            string     `json:"session,omitempty"`
	Duration           string     `json:"duration,omitempty"`
	OrderType          string     `json:"orderType"`
	Price              float64    `json:"price,omitempty"`
	StopPrice          float64    `json:"stopPrice,omitempty"`
	Quantity           float64    `json:"quantity,omitempty"`
	OrderStrategyType  string     `json:"orderStrategyType,omitempty"`
	OrderLegCollection []OrderLeg `json:"orderLegCollection"`
}

type OrderLeg struct {
	Instruction string     `json:"instruction"`
	Quantity    float64    `json:"quantity"`
	Instrument  Instrument `json:"instrument"`
}

type Instrument struct {
	Symbol    string `json:"symbol"`
	AssetType string `json:"assetType,omitempty"`
}

// FirstLeg returns the leg that drives matching. Multi-leg strategies are
// stored but only the first leg is evaluated for fills.
func (r *OrderRequest) FirstLeg() (OrderLeg, bool) {
	if len(r.OrderLegCollection) == 0 {
		return OrderLeg{}, false
	}
	return r.OrderLegCollection[0], true
}

// LegQuantity returns the order quantity, preferring the first leg's quantity
// over the top-level field when both are present.
func (r *OrderRequest) LegQuantity() float64 {
	if leg, ok := r.FirstLeg(); ok && leg.Quantity > 0 {
		return leg.Quantity
	}
	return r.Quantity
}

// Marshal serializes the request into its stored document form.
func (r OrderRequest) Marshal() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalOrderRequest parses a stored order document.
func UnmarshalOrderRequest(data string) (OrderRequest, error) {
	var r OrderRequest
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return OrderRequest{}, err
	}
	return r, nil
}
