package enums

// SpecDataType is the value type a specification attribute accepts.
type SpecDataType string

const (
	SpecDataTypeNumber SpecDataType = "number"
	SpecDataTypeText   SpecDataType = "text"
	SpecDataTypeEnum   SpecDataType = "enum"
)

var specDataTypes = []SpecDataType{SpecDataTypeNumber, SpecDataTypeText, SpecDataTypeEnum}

func (s SpecDataType) IsValid() bool { return member(s, specDataTypes) }
