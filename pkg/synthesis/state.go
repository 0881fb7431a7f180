package synthesis

// State is a step of the per-slice processing loop
type State int

const (
	SliceStart State = iota
	AnnotationLoop
	NoduleSelect
	NoduleResample
	NoduleProject
	NoduleComposite
	SliceDone
)

var stateNames = map[State]string{
	SliceStart:      "SliceStart",
	AnnotationLoop:  "AnnotationLoop",
	NoduleSelect:    "NoduleSelect",
	NoduleResample:  "NoduleResample",
	NoduleProject:   "NoduleProject",
	NoduleComposite: "NoduleComposite",
	SliceDone:       "SliceDone",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}
