package enums

// AddressType separates delivery addresses from billing ones. Each user has
// at most one default per type.
type AddressType string

const (
	AddressTypeShipping AddressType = "shipping"
	AddressTypeBilling  AddressType = "billing"
)

var addressTypes = []AddressType{AddressTypeShipping, AddressTypeBilling}

func (a AddressType) IsValid() bool { return member(a, addressTypes) }
