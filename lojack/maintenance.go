package lojack

import "time"

// MaintenanceItem is a single recommended service from the vendor's
// maintenance schedule endpoint.
type MaintenanceItem struct {
	Name        string
	Description *string
	Severity    *string
	Action      *string
	MileageDue  *float64
	MonthsDue   *int
}

// MaintenanceItemFromAPI normalizes one schedule entry.
func MaintenanceItemFromAPI(data map[string]any) MaintenanceItem {
	if data == nil {
		data = map[string]any{}
	}
	item := MaintenanceItem{}
	if name := optionalString(firstValue(data, "name", "serviceName")); name != nil {
		item.Name = *name
	}
	item.Description = optionalString(firstValue(data, "description", "serviceDescription"))
	item.Severity = optionalString(firstValue(data, "severity", "level"))
	item.Action = optionalString(firstValue(data, "action", "recommendedAction"))
	item.MileageDue = optionalFloat(firstValue(data, "mileageDue", "dueMileage"))
	item.MonthsDue = optionalInt(firstValue(data, "monthsDue", "dueMonths"))
	return item
}

// MaintenanceSchedule is the ordered list of service items for one VIN.
type MaintenanceSchedule struct {
	VIN   *string
	Items []MaintenanceItem
	Raw   map[string]any
}

// MaintenanceScheduleFromAPI normalizes a schedule payload. The VIN from
// the payload wins; the caller-supplied vin fills in when absent.
func MaintenanceScheduleFromAPI(data map[string]any, vin string) MaintenanceSchedule {
	if data == nil {
		data = map[string]any{}
	}
	schedule := MaintenanceSchedule{Raw: data}
	schedule.VIN = optionalString(firstValue(data, "vin"))
	if schedule.VIN == nil && vin != "" {
		schedule.VIN = &vin
	}
	for _, raw := range listValue(firstValue(data, "items", "services", "maintenanceItems")) {
		if item, ok := raw.(map[string]any); ok {
			schedule.Items = append(schedule.Items, MaintenanceItemFromAPI(item))
		}
	}
	return schedule
}

// RepairOrder is a dealership service record for a vehicle.
type RepairOrder struct {
	ID          *string
	VIN         *string
	AssetID     *string
	Status      *string
	Description *string
	OpenDate    *time.Time
	CloseDate   *time.Time
	TotalAmount *float64
	Raw         map[string]any
}

// RepairOrderFromAPI normalizes a repair order payload.
func RepairOrderFromAPI(data map[string]any) RepairOrder {
	if data == nil {
		data = map[string]any{}
	}
	order := RepairOrder{Raw: data}
	order.ID = optionalString(firstValue(data, "id", "repairOrderId"))
	order.VIN = optionalString(firstValue(data, "vin"))
	order.AssetID = optionalString(firstValue(data, "assetId", "asset_id"))
	order.Status = optionalString(firstValue(data, "status"))
	order.Description = optionalString(firstValue(data, "description", "notes"))
	order.OpenDate = parseTimestamp(firstValue(data, "openDate", "createdDate"))
	order.CloseDate = parseTimestamp(firstValue(data, "closeDate", "closedDate"))
	order.TotalAmount = optionalFloat(firstValue(data, "totalAmount", "total"))
	return order
}

func listValue(v any) []any {
	if items, ok := v.([]any); ok {
		return items
	}
	return nil
}
