package model

import "encoding/json"

func marshalFloatSlice(values []float64) ([]byte, error) {
	return json.Marshal(values)
}

func unmarshalFloatSlice(data []byte) ([]float64, error) {
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}
