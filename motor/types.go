// Package motor holds motor line-of-business constants and payout grid presets.
// Rows are built in the legacy motor_payout_grid/v1 shape and parsed by the
// factory package like any imported row.
package motor

// ProductType is the product type every motor grid row and policy carries.
const ProductType = "motor"

// VehicleType is the motor product subtype.
type VehicleType string

const (
	PrivateCar        VehicleType = "private_car"
	TwoWheeler        VehicleType = "two_wheeler"
	CommercialVehicle VehicleType = "commercial_vehicle"
	Taxi              VehicleType = "taxi"
)

// VehicleTypes lists the known subtypes in display order.
var VehicleTypes = []VehicleType{PrivateCar, TwoWheeler, CommercialVehicle, Taxi}

func (v VehicleType) String() string { return string(v) }
