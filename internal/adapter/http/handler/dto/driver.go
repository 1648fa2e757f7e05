package dto

import "github.com/Temutjin2k/trip-dispatch/pkg/validator"

type CoordinateUpdateReq struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (r *CoordinateUpdateReq) Validate(v *validator.Validator) {
	if r.Latitude != nil && r.Longitude != nil {
		v.Check(*r.Latitude >= -90 && *r.Latitude <= 90, "latitude", "must be between -90 and 90")
		v.Check(*r.Longitude >= -180 && *r.Longitude <= 180, "longitude", "must be between -180 and 180")
	} else {
		v.Check(r.Latitude != nil, "latitude", "must be provided")
		v.Check(r.Longitude != nil, "longitude", "must be provided")
	}
}
