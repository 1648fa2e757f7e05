package types

// TripStatus is the lifecycle state of a trip request.
type TripStatus string

const (
	StatusPending    TripStatus = "PENDING"
	StatusAccepted   TripStatus = "ACCEPTED"
	StatusArrived    TripStatus = "ARRIVED"
	StatusInProgress TripStatus = "IN_PROGRESS"
	StatusCompleted  TripStatus = "COMPLETED"
	StatusCancelled  TripStatus = "CANCELLED"
)

func (s TripStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are allowed.
func (s TripStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// AssignmentStatus mirrors the owning trip's status for the driver binding.
type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "ASSIGNED"
	AssignmentArrived    AssignmentStatus = "ARRIVED"
	AssignmentInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentCompleted  AssignmentStatus = "COMPLETED"
	AssignmentCancelled  AssignmentStatus = "CANCELLED"
)

// ServiceType distinguishes passenger transport from package delivery.
type ServiceType string

const (
	ServiceTransport       ServiceType = "TRANSPORT"
	ServicePackageDelivery ServiceType = "PACKAGE_DELIVERY"
)

// VehicleType is what the driver actually drives.
type VehicleType string

const (
	VehicleCar        VehicleType = "CAR"
	VehicleVan        VehicleType = "VAN"
	VehicleMotorcycle VehicleType = "MOTORCYCLE"
	VehicleTruck      VehicleType = "TRUCK"
)

// deliveryCapable lists vehicle types allowed to carry package deliveries.
var deliveryCapable = map[VehicleType]struct{}{
	VehicleCar:        {},
	VehicleVan:        {},
	VehicleMotorcycle: {},
}

// VehicleAllowed reports whether a vehicle type can serve a service type.
// Transport accepts any approved vehicle; package delivery is restricted.
func VehicleAllowed(service ServiceType, vehicle VehicleType) bool {
	if service == ServicePackageDelivery {
		_, ok := deliveryCapable[vehicle]
		return ok
	}
	return true
}

// VerificationStatus is the driver's document verification state.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationApproved VerificationStatus = "APPROVED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// UserRole comes from the external identity service via JWT claims.
type UserRole string

func (r UserRole) String() string {
	return string(r)
}

const (
	RoleRider        UserRole = "RIDER"
	RoleDriver       UserRole = "DRIVER"
	RoleCompanyAdmin UserRole = "COMPANY_ADMIN"
)
