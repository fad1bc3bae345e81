package domain

import "github.com/goccy/go-json"

// variant сериализует невыбранный размер или цвет как null
type variant string

func (v variant) MarshalJSON() ([]byte, error) {
	if v == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(v))
}

func (v *variant) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*v = ""
	if s != nil {
		*v = variant(*s)
	}
	return nil
}

func (it CartLineItem) MarshalJSON() ([]byte, error) {
	type plain CartLineItem
	return json.Marshal(struct {
		plain
		SelectedSize  variant `json:"selectedSize"`
		SelectedColor variant `json:"selectedColor"`
	}{plain(it), variant(it.SelectedSize), variant(it.SelectedColor)})
}

func (it *CartLineItem) UnmarshalJSON(b []byte) error {
	type plain CartLineItem
	aux := struct {
		*plain
		SelectedSize  variant `json:"selectedSize"`
		SelectedColor variant `json:"selectedColor"`
	}{plain: (*plain)(it)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	it.SelectedSize, it.SelectedColor = string(aux.SelectedSize), string(aux.SelectedColor)
	return nil
}

func (it OrderItem) MarshalJSON() ([]byte, error) {
	type plain OrderItem
	return json.Marshal(struct {
		plain
		SelectedSize  variant `json:"selectedSize"`
		SelectedColor variant `json:"selectedColor"`
	}{plain(it), variant(it.SelectedSize), variant(it.SelectedColor)})
}

func (it *OrderItem) UnmarshalJSON(b []byte) error {
	type plain OrderItem
	aux := struct {
		*plain
		SelectedSize  variant `json:"selectedSize"`
		SelectedColor variant `json:"selectedColor"`
	}{plain: (*plain)(it)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	it.SelectedSize, it.SelectedColor = string(aux.SelectedSize), string(aux.SelectedColor)
	return nil
}
