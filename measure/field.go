package measure

import "strings"

// Field is measurement identifier, also used as topic suffix.
type Field string

const (
	FieldVersion                Field = "version"
	FieldTimestamp              Field = "timestamp"
	FieldEquipmentID            Field = "equipment_id"
	FieldEnergyDeliveredTariff1 Field = "energy_delivered_tariff1"
	FieldEnergyDeliveredTariff2 Field = "energy_delivered_tariff2"
	FieldEnergyReturnedTariff1  Field = "energy_returned_tariff1"
	FieldEnergyReturnedTariff2  Field = "energy_returned_tariff2"
	FieldTariffIndicator        Field = "tariff_indicator"
	FieldPowerDelivered         Field = "power_delivered"
	FieldPowerReturned          Field = "power_returned"
	FieldPowerFailures          Field = "power_failures"
	FieldLongPowerFailures      Field = "long_power_failures"
	FieldVoltageSagsL1          Field = "voltage_sags_l1"
	FieldVoltageSagsL2          Field = "voltage_sags_l2"
	FieldVoltageSagsL3          Field = "voltage_sags_l3"
	FieldVoltageSwellsL1        Field = "voltage_swells_l1"
	FieldVoltageSwellsL2        Field = "voltage_swells_l2"
	FieldVoltageSwellsL3        Field = "voltage_swells_l3"
	FieldTextMessage            Field = "text_message"
	FieldVoltageL1              Field = "voltage_l1"
	FieldVoltageL2              Field = "voltage_l2"
	FieldVoltageL3              Field = "voltage_l3"
	FieldCurrentL1              Field = "current_l1"
	FieldCurrentL2              Field = "current_l2"
	FieldCurrentL3              Field = "current_l3"
	FieldPowerDeliveredL1       Field = "power_delivered_l1"
	FieldPowerDeliveredL2       Field = "power_delivered_l2"
	FieldPowerDeliveredL3       Field = "power_delivered_l3"
	FieldPowerReturnedL1        Field = "power_returned_l1"
	FieldPowerReturnedL2        Field = "power_returned_l2"
	FieldPowerReturnedL3        Field = "power_returned_l3"
	FieldGasDelivered           Field = "gas_delivered"
)

var fieldByCode = map[string]Field{
	"1-3:0.2.8":   FieldVersion,
	"0-0:1.0.0":   FieldTimestamp,
	"0-0:96.1.1":  FieldEquipmentID,
	"1-0:1.8.1":   FieldEnergyDeliveredTariff1,
	"1-0:1.8.2":   FieldEnergyDeliveredTariff2,
	"1-0:2.8.1":   FieldEnergyReturnedTariff1,
	"1-0:2.8.2":   FieldEnergyReturnedTariff2,
	"0-0:96.14.0": FieldTariffIndicator,
	"1-0:1.7.0":   FieldPowerDelivered,
	"1-0:2.7.0":   FieldPowerReturned,
	"0-0:96.7.21": FieldPowerFailures,
	"0-0:96.7.9":  FieldLongPowerFailures,
	"1-0:32.32.0": FieldVoltageSagsL1,
	"1-0:52.32.0": FieldVoltageSagsL2,
	"1-0:72.32.0": FieldVoltageSagsL3,
	"1-0:32.36.0": FieldVoltageSwellsL1,
	"1-0:52.36.0": FieldVoltageSwellsL2,
	"1-0:72.36.0": FieldVoltageSwellsL3,
	"0-0:96.13.0": FieldTextMessage,
	"1-0:32.7.0":  FieldVoltageL1,
	"1-0:52.7.0":  FieldVoltageL2,
	"1-0:72.7.0":  FieldVoltageL3,
	"1-0:31.7.0":  FieldCurrentL1,
	"1-0:51.7.0":  FieldCurrentL2,
	"1-0:71.7.0":  FieldCurrentL3,
	"1-0:21.7.0":  FieldPowerDeliveredL1,
	"1-0:41.7.0":  FieldPowerDeliveredL2,
	"1-0:61.7.0":  FieldPowerDeliveredL3,
	"1-0:22.7.0":  FieldPowerReturnedL1,
	"1-0:42.7.0":  FieldPowerReturnedL2,
	"1-0:62.7.0":  FieldPowerReturnedL3,
}

// FieldOf returns "" for codes without measurement field.
func FieldOf(code string) Field {
	if f, ok := fieldByCode[code]; ok {
		return f
	}
	// M-Bus channel 1..4 all report as gas
	if strings.HasPrefix(code, "0-") && (strings.HasSuffix(code, ":24.2.1") || strings.HasSuffix(code, ":24.3.0")) {
		return FieldGasDelivered
	}
	return ""
}
