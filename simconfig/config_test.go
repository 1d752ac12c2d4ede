package simconfig

import "testing"

const sampleConf = `
[global]
	Nanos-Per-Tick=1000000
	Quantum-Ticks=4
	Memory-Budget=64
	Log-Level=info

[edf-task "sensor-poll"]
	First-Deadline=10
	Period=10
	Budget=2

[edf-task "actuator"]
	First-Deadline=5
	Period=5
	Budget=1
`

func TestLoadBytesParsesGlobalAndEDFTasks(t *testing.T) {
	sc, err := LoadBytes([]byte(sampleConf))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if sc.Global.Nanos_Per_Tick != 1000000 || sc.Global.Quantum_Ticks != 4 || sc.Global.Memory_Budget != 64 {
		t.Fatalf("unexpected global section: %+v", sc.Global)
	}
	if len(sc.EDF_Task) != 2 {
		t.Fatalf("expected 2 EDF tasks, got %d", len(sc.EDF_Task))
	}
	specs := sc.EDFSpecs()
	if len(specs) != 2 || specs[0].Name != "actuator" || specs[1].Name != "sensor-poll" {
		t.Fatalf("expected EDF specs sorted by name, got %+v", specs)
	}
}

func TestVerifyRejectsMissingNanosPerTick(t *testing.T) {
	_, err := LoadBytes([]byte("[global]\nQuantum-Ticks=4\n"))
	if err != ErrMissingNanosPerTick {
		t.Fatalf("expected ErrMissingNanosPerTick, got %v", err)
	}
}

func TestVerifyRejectsIncompleteEDFTask(t *testing.T) {
	bad := `
[global]
	Nanos-Per-Tick=1000

[edf-task "broken"]
	Period=10
`
	_, err := LoadBytes([]byte(bad))
	if err == nil {
		t.Fatal("expected an error for a task missing Budget")
	}
}

func TestVerifyDefaultsQuantumAndStorage(t *testing.T) {
	sc, err := LoadBytes([]byte("[global]\nNanos-Per-Tick=1000\n"))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if sc.Global.Quantum_Ticks != 1 {
		t.Fatalf("expected default quantum of 1, got %d", sc.Global.Quantum_Ticks)
	}
	if sc.Global.Storage_Block_Size != 512 || sc.Global.Storage_Blocks != 1024 {
		t.Fatalf("expected default storage sizing, got %+v", sc.Global)
	}
}

func TestLoggerDiscardsWhenNoLogFileConfigured(t *testing.T) {
	sc, err := LoadBytes([]byte("[global]\nNanos-Per-Tick=1000\n"))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if _, err := sc.Logger(); err != nil {
		t.Fatalf("Logger: %v", err)
	}
}
