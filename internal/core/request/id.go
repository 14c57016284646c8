package request

import (
	"fmt"
	"strconv"
	"strings"
)

// Category is the fixed first token of every request identifier.
const Category = "ReReco"

// IDPrefix builds the identifier prefix shared by all requests of the
// same era, dataset and processing string. The serial number
// disambiguates within the prefix.
func IDPrefix(era, dataset, processingString string) string {
	return fmt.Sprintf("%s-%s-%s-%s", Category, era, dataset, processingString)
}

// GenerateID forms a request identifier from its prefix and serial
// number. The format is {category}-{era}-{dataset}-{processing_string}-{serial}
// with a zero-padded five-digit serial.
func GenerateID(prefix string, serial int) string {
	return fmt.Sprintf("%s-%05d", prefix, serial)
}

// ParseSerial extracts the serial number from an identifier.
// Returns -1 if the identifier has no numeric suffix.
func ParseSerial(id string) int {
	idx := strings.LastIndex(id, "-")
	if idx < 0 {
		return -1
	}
	serial, err := strconv.Atoi(id[idx+1:])
	if err != nil {
		return -1
	}
	return serial
}
