package symptom

// EmergencyThreshold is the score at which a submission escalates to
// the doctor-matching path.
const EmergencyThreshold = 8

// Gate decides whether a submission is an emergency. Pure and
// deterministic: either the assessed severity or the raw maximum
// reported intensity crossing the threshold escalates. The raw-intensity
// clause guards against the analyzer underestimating severity relative
// to what the patient reported.
func Gate(a Assessment, obs []Observation) bool {
	return a.SeverityScore >= EmergencyThreshold || maxIntensity(obs) >= EmergencyThreshold
}

func maxIntensity(obs []Observation) int {
	maxI := 0
	for _, o := range obs {
		if o.Intensity > maxI {
			maxI = o.Intensity
		}
	}
	return maxI
}
