package user

// Classification is the outcome of an identity lookup against the user service.
type Classification int

const (
	Anonymous Classification = iota
	Known
)

func (c Classification) String() string {
	switch c {
	case Known:
		return "known"
	default:
		return "anonymous"
	}
}

// ClassifyStatus maps the user service check status: only 200 means the user is known.
func ClassifyStatus(status int) Classification {
	if status == 200 {
		return Known
	}
	return Anonymous
}
