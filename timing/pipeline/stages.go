package pipeline

import (
	"fmt"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

// addressLatency is the execute occupancy of a load when the data cache
// times the access in the memory stage.
const addressLatency = 1

// fetchStage reads the word at the fetch PC and picks the next fetch
// address. jal is resolved here from its encoding; conditional branches
// and jalr follow the predictor when it knows a taken target.
func (p *Pipeline) fetchStage() IFIDRegister {
	pc := p.pc
	word := p.memory.Read32(pc)
	r := IFIDRegister{Valid: true, PC: pc, InstructionWord: word}

	if p.branchPredictor != nil {
		inst := p.decoder.Decode(word)
		switch {
		case inst.Op == insts.OpJAL:
			r.PredictedTaken = true
			r.PredictedTarget = pc + uint32(inst.Imm)
			r.EarlyResolved = true
		case inst.IsBranch() || inst.Op == insts.OpJALR:
			if pred := p.branchPredictor.Predict(pc); pred.Redirect() {
				r.PredictedTaken = true
				r.PredictedTarget = pred.Target
			}
		}
	}

	if r.PredictedTaken {
		p.pc = r.PredictedTarget
	} else {
		p.pc = pc + 4
	}

	return r
}

// decodeStage builds the ID/EX register for inst, the decoded IF/ID word,
// and reads its operands.
func (p *Pipeline) decodeStage(inst *insts.Instruction) IDEXRegister {
	ops := inst.Operands()
	r := IDEXRegister{
		Valid:           true,
		PC:              p.ifid.PC,
		Inst:            inst,
		Ops:             ops,
		MemRead:         inst.IsLoad(),
		MemWrite:        inst.IsStore(),
		RegWrite:        ops.WritesRd,
		MemToReg:        inst.IsLoad(),
		IsBranch:        inst.IsBranch() || inst.IsJump(),
		PredictedTaken:  p.ifid.PredictedTaken,
		PredictedTarget: p.ifid.PredictedTarget,
		EarlyResolved:   p.ifid.EarlyResolved,
	}
	p.readOperands(&r)

	return r
}

func (p *Pipeline) readOperands(r *IDEXRegister) {
	if r.Ops.UsesRs1 {
		r.Rs1Value = p.regFile.Read(r.Inst.Rs1, r.Ops.Rs1FP)
	}
	if r.Ops.UsesRs2 {
		r.Rs2Value = p.regFile.Read(r.Inst.Rs2, r.Ops.Rs2FP)
	}
	if r.Ops.UsesRs3 {
		r.Rs3Value = p.regFile.Read(r.Inst.Rs3, r.Ops.Rs3FP)
	}
}

// executeStage runs one EX cycle. The first cycle of an instruction
// forwards its operands and computes its outcome; it then holds the stage
// for its latency. On the last cycle it returns the EX/MEM value and, for a
// branch or jump fetch did not follow, the address to restart at.
func (p *Pipeline) executeStage(memwb *MEMWBRegister) (next EXMEMRegister, stall, mispredicted bool, redirect uint32) {
	ex := &p.idex
	if !ex.Valid {
		return next, false, false, 0
	}

	if p.exLatency == 0 {
		p.forwardOperands(memwb)
		ex.Out = emu.Compute(ex.Inst, ex.PC, ex.Rs1Value, ex.Rs2Value, ex.Rs3Value)
		p.exLatency = p.latencyFor(ex)
	}

	if p.exLatency > 0 {
		p.exLatency--
	}
	if p.exLatency > 0 {
		p.stats.ExecStalls++
		return next, true, false, 0
	}

	out := ex.Out
	nextPC := out.NextPC(ex.PC)

	if ex.IsBranch {
		mispredicted, redirect = p.resolveBranch(ex, nextPC)
	}

	next = EXMEMRegister{
		Valid:      true,
		PC:         ex.PC,
		Inst:       ex.Inst,
		ALUResult:  out.Value,
		StoreValue: out.StoreValue,
		Rd:         ex.Inst.Rd,
		RdFP:       ex.Ops.RdFP,
		NextPC:     nextPC,
		FFlags:     out.FFlags,
		MemRead:    ex.MemRead,
		MemWrite:   ex.MemWrite,
		RegWrite:   ex.RegWrite,
		MemToReg:   ex.MemToReg,
	}
	if ex.MemRead || ex.MemWrite {
		next.ALUResult = out.Addr
	}

	return next, false, mispredicted, redirect
}

// forwardOperands replaces the operands read in decode with the results of
// the instructions in EX/MEM and MEM/WB.
func (p *Pipeline) forwardOperands(memwb *MEMWBRegister) {
	if p.noForwarding {
		return
	}

	ex := &p.idex
	fwd := p.hazardUnit.DetectForwarding(ex, &p.exmem, memwb)
	if !fwd.Any() {
		return
	}

	p.stats.DataHazards++
	ex.Rs1Value = p.hazardUnit.GetForwardedValue(fwd.ForwardRs1, ex.Rs1Value, &p.exmem, memwb)
	ex.Rs2Value = p.hazardUnit.GetForwardedValue(fwd.ForwardRs2, ex.Rs2Value, &p.exmem, memwb)
	ex.Rs3Value = p.hazardUnit.GetForwardedValue(fwd.ForwardRs3, ex.Rs3Value, &p.exmem, memwb)
}

func (p *Pipeline) latencyFor(ex *IDEXRegister) uint64 {
	if p.dcache != nil && ex.MemRead {
		return addressLatency
	}
	return p.latencyTable.GetLatency(ex.Inst)
}

// resolveBranch checks the resolved successor against the one fetch
// followed and trains the predictor.
func (p *Pipeline) resolveBranch(ex *IDEXRegister, nextPC uint32) (bool, uint32) {
	p.stats.BranchPredictions++
	if p.branchPredictor != nil {
		p.branchPredictor.Update(ex.PC, ex.Out.Taken, ex.Out.Target)
	}

	predicted := ex.PC + 4
	if ex.PredictedTaken {
		predicted = ex.PredictedTarget
	}

	if predicted == nextPC {
		p.stats.BranchCorrect++
		return false, 0
	}

	p.stats.BranchMispredictions++
	p.logger.Debug("mispredict",
		"pc", ex.PC,
		"predicted_taken", ex.PredictedTaken,
		"taken", ex.Out.Taken,
		"target", nextPC,
	)

	return true, nextPC
}

// memoryStage runs one MEM cycle. Loads and stores access memory here and,
// with the data cache enabled, hold the stage for the access latency.
// System instructions take effect here: every older instruction has
// already written back. It reports a stall, or a system call that must
// restart fetch behind itself.
func (p *Pipeline) memoryStage() (next MEMWBRegister, stall, serialize bool) {
	em := &p.exmem
	if !em.Valid {
		return next, false, false
	}

	switch em.Inst.Op {
	case insts.OpUnknown:
		p.halt(0, fmt.Errorf("%w: 0x%08x at pc=0x%x", ErrIllegalInstruction, em.Inst.Word, em.PC))
		return next, false, false
	case insts.OpEBREAK:
		p.regFile.PC = em.PC
		p.halt(0, nil)
		return next, false, false
	case insts.OpECALL:
		p.regFile.PC = em.PC + 4
		res := p.syscallHandler.Handle()
		if res.Exited {
			p.halt(res.ExitCode, nil)
			return next, false, false
		}
		p.stats.Serializations++
		p.logger.Debug("serialize", "pc", em.PC)
		serialize = true
	}

	if p.dcache != nil && (em.MemRead || em.MemWrite) {
		if p.memLatency == 0 {
			if em.MemRead {
				p.memLatency = p.dcache.Read(em.ALUResult).Latency
			} else {
				p.memLatency = p.dcache.Write(em.ALUResult).Latency
			}
		}

		if p.memLatency > 0 {
			p.memLatency--
		}
		if p.memLatency > 0 {
			p.stats.MemStalls++
			return next, true, false
		}
	}

	var memData uint32
	switch {
	case em.MemRead:
		memData = emu.ExecuteLoad(p.memory, em.Inst, em.ALUResult)
	case em.MemWrite:
		emu.ExecuteStore(p.memory, em.Inst, em.ALUResult, em.StoreValue)
	}

	next = MEMWBRegister{
		Valid:     true,
		PC:        em.PC,
		Inst:      em.Inst,
		ALUResult: em.ALUResult,
		MemData:   memData,
		Rd:        em.Rd,
		RdFP:      em.RdFP,
		NextPC:    em.NextPC,
		FFlags:    em.FFlags,
		RegWrite:  em.RegWrite,
		MemToReg:  em.MemToReg,
	}

	return next, false, serialize
}

// writeback retires the instruction in MEM/WB into the register file.
func (p *Pipeline) writeback() {
	wb := &p.memwb
	if !wb.Valid {
		return
	}

	if wb.RegWrite {
		p.regFile.Write(wb.Rd, wb.RdFP, wb.Result())
	}
	p.regFile.AccrueFlags(wb.FFlags)
	p.regFile.PC = wb.NextPC

	p.stats.Instructions++
}
