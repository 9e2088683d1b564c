package measurement

// CodeInfo is the display name and clinical category for a concept code.
type CodeInfo struct {
	Name     string
	Category string
}

// measurementCodes maps LOINC, SNOMED and DCM concept codes to display names.
var measurementCodes = map[string]CodeInfo{
	// Obstetric
	"11979-2": {"Biparietal Diameter (BPD)", CategoryObstetric},
	"11820-8": {"Head Circumference (HC)", CategoryObstetric},
	"11863-8": {"Abdominal Circumference (AC)", CategoryObstetric},
	"11963-6": {"Femur Length (FL)", CategoryObstetric},
	"11957-8": {"Crown Rump Length (CRL)", CategoryObstetric},
	"11948-7": {"Estimated Fetal Weight (EFW)", CategoryObstetric},

	// Abdominal
	"G-D705":  {"Liver Length", CategoryAbdominal},
	"T-62000": {"Liver", CategoryAbdominal},
	"T-D4000": {"Spleen Length", CategoryAbdominal},
	"T-71000": {"Kidney", CategoryAbdominal},
	"T-71100": {"Right Kidney", CategoryAbdominal},
	"T-71200": {"Left Kidney", CategoryAbdominal},
	"T-65000": {"Pancreas", CategoryAbdominal},
	"T-63000": {"Gallbladder", CategoryAbdominal},
	"T-48003": {"Aorta", CategoryAbdominal},
	"T-48610": {"Common Bile Duct", CategoryAbdominal},

	// Thyroid
	"T-B6000": {"Thyroid", CategoryThyroid},
	"T-B6100": {"Right Thyroid Lobe", CategoryThyroid},
	"T-B6200": {"Left Thyroid Lobe", CategoryThyroid},
	"T-B6300": {"Thyroid Isthmus", CategoryThyroid},

	// Cardiac
	"18083-6": {"Left Ventricular Ejection Fraction", CategoryCardiac},
	"18154-5": {"LV Internal Dimension Diastole", CategoryCardiac},
	"18155-2": {"LV Internal Dimension Systole", CategoryCardiac},
	"18156-0": {"Interventricular Septum Diastole", CategoryCardiac},
	"18157-8": {"LV Posterior Wall Diastole", CategoryCardiac},

	// Vascular
	"G-0364": {"Diameter", CategoryVascular},
	"G-0368": {"Area", CategoryVascular},
	"G-037D": {"Peak Systolic Velocity", CategoryVascular},
	"G-037E": {"End Diastolic Velocity", CategoryVascular},
	"G-037F": {"Resistive Index", CategoryVascular},
	"G-0380": {"Pulsatility Index", CategoryVascular},

	// Generic
	"121206": {"Distance", CategoryGeneric},
	"121207": {"Area", CategoryGeneric},
	"121208": {"Volume", CategoryGeneric},
	"121211": {"Path Length", CategoryGeneric},
	"121216": {"Circumference", CategoryGeneric},
}

// LookupCode returns the known display name and category for a concept code.
func LookupCode(code string) (CodeInfo, bool) {
	info, ok := measurementCodes[code]
	return info, ok
}

// unitCodes maps UCUM unit codes to display units.
var unitCodes = map[string]string{
	"cm":      "cm",
	"mm":      "mm",
	"m":       "m",
	"cm2":     "cm²",
	"mm2":     "mm²",
	"cm3":     "cm³",
	"ml":      "ml",
	"cm/s":    "cm/s",
	"m/s":     "m/s",
	"%":       "%",
	"g":       "g",
	"kg":      "kg",
	"wk":      "weeks",
	"d":       "days",
	"{ratio}": "",
}

// DisplayUnit maps a unit code to its display form.
func DisplayUnit(code string) (string, bool) {
	u, ok := unitCodes[code]
	return u, ok
}

// srSOPClasses lists the Structured Report storage SOP classes.
var srSOPClasses = map[string]struct{}{
	"1.2.840.10008.5.1.4.1.1.88.11": {}, // Basic Text SR
	"1.2.840.10008.5.1.4.1.1.88.22": {}, // Enhanced SR
	"1.2.840.10008.5.1.4.1.1.88.33": {}, // Comprehensive SR
	"1.2.840.10008.5.1.4.1.1.88.34": {}, // Comprehensive 3D SR
	"1.2.840.10008.5.1.4.1.1.88.35": {}, // Extensible SR
	"1.2.840.10008.5.1.4.1.1.88.40": {}, // Procedure Log
	"1.2.840.10008.5.1.4.1.1.88.50": {}, // Mammography CAD SR
	"1.2.840.10008.5.1.4.1.1.88.65": {}, // Chest CAD SR
	"1.2.840.10008.5.1.4.1.1.88.67": {}, // X-Ray Radiation Dose SR
	"1.2.840.10008.5.1.4.1.1.88.68": {}, // Spectacle Prescription Report
	"1.2.840.10008.5.1.4.1.1.88.69": {}, // Macular Grid Thickness and Volume Report
	"1.2.840.10008.5.1.4.1.1.88.70": {}, // Implantation Plan SR
}

// IsStructuredReport reports whether an instance with the given modality and
// SOP Class UID is a Structured Report.
func IsStructuredReport(modality, sopClassUID string) bool {
	if modality == "SR" {
		return true
	}
	_, ok := srSOPClasses[sopClassUID]
	return ok
}

type keyword struct {
	match string
	name  string
}

// keywords resolves a clinical name from free text. Order matters: the first
// substring match wins.
var keywords = []keyword{
	{"liver", "Liver"},
	{"kidney", "Kidney"},
	{"right kidney", "Right Kidney"},
	{"left kidney", "Left Kidney"},
	{"spleen", "Spleen"},
	{"pancreas", "Pancreas"},
	{"gallbladder", "Gallbladder"},
	{"gb", "Gallbladder"},
	{"cbd", "Common Bile Duct"},
	{"common bile duct", "Common Bile Duct"},
	{"aorta", "Aorta"},
	{"thyroid", "Thyroid"},
	{"right lobe", "Right Lobe"},
	{"left lobe", "Left Lobe"},
	{"isthmus", "Isthmus"},
	{"uterus", "Uterus"},
	{"ovary", "Ovary"},
	{"prostate", "Prostate"},
	{"bladder", "Bladder"},
	{"fetus", "Fetus"},
	{"bpd", "Biparietal Diameter"},
	{"hc", "Head Circumference"},
	{"ac", "Abdominal Circumference"},
	{"fl", "Femur Length"},
	{"crl", "Crown Rump Length"},
	{"efw", "Estimated Fetal Weight"},
	{"lv", "Left Ventricle"},
	{"rv", "Right Ventricle"},
	{"la", "Left Atrium"},
	{"ra", "Right Atrium"},
	{"ef", "Ejection Fraction"},
	{"ivs", "Interventricular Septum"},
}

// physicalUnits decodes ultrasound region physical unit codes.
var physicalUnits = [...]string{
	"None",
	"Percent",
	"dB",
	"cm",
	"seconds",
	"hertz",
	"dB/seconds",
	"cm/sec",
	"cm²",
	"cm²/sec",
	"cm³",
	"cm³/sec",
}

// PhysicalUnitsLabel maps a region physical-units code to its label. Codes
// outside the table map to "Unknown".
func PhysicalUnitsLabel(code int) string {
	if code < 0 || code >= len(physicalUnits) {
		return "Unknown"
	}
	return physicalUnits[code]
}

var knownCategories = map[string]struct{}{
	CategoryObstetric: {},
	CategoryAbdominal: {},
	CategoryThyroid:   {},
	CategoryCardiac:   {},
	CategoryVascular:  {},
	CategoryGeneric:   {},
}
